package events

import (
	"context"
	"time"

	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

// Event describes a transaction status change.
type Event struct {
	Id           string    `json:"id"`
	ChainId      string    `json:"chain_id"`
	From         string    `json:"from"`
	Origin       string    `json:"origin,omitempty"`
	Status       string    `json:"status"`
	TxType       string    `json:"tx_type"`
	TxHash       string    `json:"tx_hash,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewEvent(record *transaction.Record) *Event {
	return &Event{
		Id:           record.Id,
		ChainId:      record.ChainId,
		From:         record.From,
		Origin:       record.Origin,
		Status:       record.Status.String(),
		TxType:       record.TxType.String(),
		TxHash:       record.TxHash,
		ErrorMessage: record.ErrorMessage,
		Timestamp:    time.Now().UTC(),
	}
}

// Publisher delivers events to observers of the wallet.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

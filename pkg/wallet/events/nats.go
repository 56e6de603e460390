package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
)

const (
	StreamName      = "WALLET_TRANSACTIONS"
	StreamSubjects  = "wallet.txns.>"
	StreamRetention = 7 * 24 * time.Hour

	metricsStructName = "wallet.events.jetstream"
)

// Subject returns the subject an event is published on. Observers can
// subscribe per chain, or per account with a wildcard chain.
func Subject(event *Event) string {
	return fmt.Sprintf("wallet.txns.%s.%s", event.ChainId, event.From)
}

// messageId dedupes redeliveries of the same status change within the
// stream's duplicate window.
func messageId(event *Event) string {
	return event.Id + "." + event.Status
}

// JetStreamPublisher publishes events to a NATS JetStream stream.
type JetStreamPublisher struct {
	log *logrus.Entry
	nc  *nats.Conn
	js  jetstream.JetStream
}

// NewJetStreamPublisher connects to NATS and ensures the stream exists.
func NewJetStreamPublisher(ctx context.Context, natsURL string) (*JetStreamPublisher, error) {
	log := logrus.StandardLogger().WithField("type", "wallet/events/jetstream")

	nc, err := nats.Connect(natsURL,
		nats.Name("walletd"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to nats")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "error creating jetstream context")
	}

	p := &JetStreamPublisher{
		log: log,
		nc:  nc,
		js:  js,
	}

	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"url":    natsURL,
		"stream": StreamName,
	}).Info("nats publisher initialized")

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Wallet transaction status changes",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return errors.Wrap(err, "error ensuring jetstream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event *Event) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Publish")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "error marshalling event")
	}

	subject := Subject(event)

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(messageId(event)))
	if err != nil {
		return errors.Wrapf(err, "error publishing event to %s", subject)
	}

	p.log.WithFields(logrus.Fields{
		"subject": subject,
		"id":      event.Id,
		"status":  event.Status,
	}).Debug("published event")

	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return errors.Wrap(err, "error draining nats connection")
	}
	return nil
}

package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	pg "github.com/code-payments/wallet-server/pkg/database/postgres"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

const (
	tableName = "wallet__core_transaction"
)

type model struct {
	Id      string `db:"id"`
	ChainId string `db:"chain_id"`
	From    string `db:"from_address"`
	Origin  string `db:"origin"`

	Status uint `db:"status"`
	TxType uint `db:"tx_type"`

	RecentBlockhash      string `db:"recent_blockhash"`
	LastValidBlockHeight uint64 `db:"last_valid_block_height"`
	FeePayer             string `db:"fee_payer"`
	Instructions         []byte `db:"instructions"`
	SendOptions          []byte `db:"send_options"`
	SignTxParam          []byte `db:"sign_tx_param"`
	RawSignatures        []byte `db:"raw_signatures"`

	TxHash                 string `db:"tx_hash"`
	SignatureSlot          uint64 `db:"signature_slot"`
	SignatureConfirmations uint64 `db:"signature_confirmations"`
	SignatureErr           string `db:"signature_err"`
	ConfirmationStatus     string `db:"confirmation_status"`
	ErrorMessage           string `db:"error_message"`

	CreatedAt   time.Time    `db:"created_at"`
	SubmittedAt sql.NullTime `db:"submitted_at"`
	ConfirmedAt sql.NullTime `db:"confirmed_at"`
}

// Instructions and the optional parameter structs are stored as JSON with
// base58 keys, so rows remain readable when inspected by hand.
type accountMetaJson struct {
	PublicKey  string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type instructionJson struct {
	Program  string            `json:"program"`
	Accounts []accountMetaJson `json:"accounts"`
	Data     []byte            `json:"data"`
}

type signaturePairJson struct {
	PublicKey string `json:"pubkey"`
	Signature []byte `json:"signature"`
}

type signTxParamJson struct {
	EncodedSerializedMessage string              `json:"encoded_serialized_message"`
	Signatures               []signaturePairJson `json:"signatures"`
}

func toModel(obj *transaction.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	instructions := make([]instructionJson, len(obj.Message.Instructions))
	for i, instruction := range obj.Message.Instructions {
		converted := instructionJson{
			Program:  base58.Encode(instruction.Program),
			Accounts: make([]accountMetaJson, len(instruction.Accounts)),
			Data:     instruction.Data,
		}
		for j, account := range instruction.Accounts {
			converted.Accounts[j] = accountMetaJson{
				PublicKey:  base58.Encode(account.PublicKey),
				IsSigner:   account.IsSigner,
				IsWritable: account.IsWritable,
			}
		}
		instructions[i] = converted
	}

	encodedInstructions, err := json.Marshal(instructions)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding instructions")
	}

	var encodedSendOptions []byte
	if obj.SendOptions != nil {
		encodedSendOptions, err = json.Marshal(obj.SendOptions)
		if err != nil {
			return nil, errors.Wrap(err, "error encoding send options")
		}
	}

	var encodedSignTxParam []byte
	if obj.SignTxParam != nil {
		param := signTxParamJson{
			EncodedSerializedMessage: obj.SignTxParam.EncodedSerializedMessage,
			Signatures:               make([]signaturePairJson, len(obj.SignTxParam.Signatures)),
		}
		for i, pair := range obj.SignTxParam.Signatures {
			param.Signatures[i] = signaturePairJson{
				PublicKey: pair.PublicKey,
				Signature: pair.Signature,
			}
		}

		encodedSignTxParam, err = json.Marshal(param)
		if err != nil {
			return nil, errors.Wrap(err, "error encoding sign tx param")
		}
	}

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &model{
		Id:      obj.Id,
		ChainId: obj.ChainId,
		From:    obj.From,
		Origin:  obj.Origin,

		Status: uint(obj.Status),
		TxType: uint(obj.TxType),

		RecentBlockhash:      obj.Message.RecentBlockhash,
		LastValidBlockHeight: obj.Message.LastValidBlockHeight,
		FeePayer:             obj.Message.FeePayer,
		Instructions:         encodedInstructions,
		SendOptions:          encodedSendOptions,
		SignTxParam:          encodedSignTxParam,
		RawSignatures:        obj.RawSignatures,

		TxHash:                 obj.TxHash,
		SignatureSlot:          obj.SignatureStatus.Slot,
		SignatureConfirmations: obj.SignatureStatus.Confirmations,
		SignatureErr:           obj.SignatureStatus.Err,
		ConfirmationStatus:     obj.SignatureStatus.ConfirmationStatus,
		ErrorMessage:           obj.ErrorMessage,

		CreatedAt:   createdAt.UTC(),
		SubmittedAt: toNullTime(obj.SubmittedAt),
		ConfirmedAt: toNullTime(obj.ConfirmedAt),
	}, nil
}

func fromModel(obj *model) (*transaction.Record, error) {
	var instructions []instructionJson
	if err := json.Unmarshal(obj.Instructions, &instructions); err != nil {
		return nil, errors.Wrap(err, "error decoding instructions")
	}

	decoded := make([]solana.Instruction, len(instructions))
	for i, instruction := range instructions {
		program, err := decodeKey(instruction.Program)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid program in instruction %d", i)
		}

		converted := solana.Instruction{
			Program:  program,
			Accounts: make([]solana.AccountMeta, len(instruction.Accounts)),
			Data:     instruction.Data,
		}
		for j, account := range instruction.Accounts {
			key, err := decodeKey(account.PublicKey)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid account %d in instruction %d", j, i)
			}

			converted.Accounts[j] = solana.AccountMeta{
				PublicKey:  key,
				IsSigner:   account.IsSigner,
				IsWritable: account.IsWritable,
			}
		}
		decoded[i] = converted
	}

	var sendOptions *solana.SendOptions
	if len(obj.SendOptions) > 0 {
		sendOptions = &solana.SendOptions{}
		if err := json.Unmarshal(obj.SendOptions, sendOptions); err != nil {
			return nil, errors.Wrap(err, "error decoding send options")
		}
	}

	var signTxParam *transaction.SignTxParam
	if len(obj.SignTxParam) > 0 {
		var param signTxParamJson
		if err := json.Unmarshal(obj.SignTxParam, &param); err != nil {
			return nil, errors.Wrap(err, "error decoding sign tx param")
		}

		signTxParam = &transaction.SignTxParam{
			EncodedSerializedMessage: param.EncodedSerializedMessage,
			Signatures:               make([]transaction.SignaturePubkeyPair, len(param.Signatures)),
		}
		for i, pair := range param.Signatures {
			signTxParam.Signatures[i] = transaction.SignaturePubkeyPair{
				PublicKey: pair.PublicKey,
				Signature: pair.Signature,
			}
		}
	}

	return &transaction.Record{
		Id:      obj.Id,
		ChainId: obj.ChainId,
		From:    obj.From,
		Origin:  obj.Origin,

		Status: transaction.Status(obj.Status),
		TxType: transaction.TxType(obj.TxType),

		Message: transaction.Message{
			RecentBlockhash:      obj.RecentBlockhash,
			LastValidBlockHeight: obj.LastValidBlockHeight,
			FeePayer:             obj.FeePayer,
			Instructions:         decoded,
		},
		SendOptions:   sendOptions,
		SignTxParam:   signTxParam,
		RawSignatures: obj.RawSignatures,

		TxHash: obj.TxHash,
		SignatureStatus: transaction.SignatureStatus{
			Slot:               obj.SignatureSlot,
			Confirmations:      obj.SignatureConfirmations,
			Err:                obj.SignatureErr,
			ConfirmationStatus: obj.ConfirmationStatus,
		},
		ErrorMessage: obj.ErrorMessage,

		CreatedAt:   obj.CreatedAt.UTC(),
		SubmittedAt: fromNullTime(obj.SubmittedAt),
		ConfirmedAt: fromNullTime(obj.ConfirmedAt),
	}, nil
}

func decodeKey(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length %d", len(decoded))
	}
	return decoded, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func (m *model) dbPut(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + tableName + `
		(
			id, chain_id, from_address, origin, status, tx_type,
			recent_blockhash, last_valid_block_height, fee_payer, instructions,
			send_options, sign_tx_param, raw_signatures,
			tx_hash, signature_slot, signature_confirmations, signature_err, confirmation_status,
			error_message, created_at, submitted_at, confirmed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE
		SET
			status = $5,
			tx_type = $6,
			recent_blockhash = $7,
			last_valid_block_height = $8,
			fee_payer = $9,
			instructions = $10,
			send_options = $11,
			sign_tx_param = $12,
			raw_signatures = $13,
			tx_hash = $14,
			signature_slot = $15,
			signature_confirmations = $16,
			signature_err = $17,
			confirmation_status = $18,
			error_message = $19,
			submitted_at = $21,
			confirmed_at = $22
			WHERE ` + tableName + `.id = $1
		RETURNING *;`

	return tx.QueryRowxContext(ctx, query,
		m.Id,
		m.ChainId,
		m.From,
		m.Origin,
		m.Status,
		m.TxType,
		m.RecentBlockhash,
		m.LastValidBlockHeight,
		m.FeePayer,
		m.Instructions,
		m.SendOptions,
		m.SignTxParam,
		m.RawSignatures,
		m.TxHash,
		m.SignatureSlot,
		m.SignatureConfirmations,
		m.SignatureErr,
		m.ConfirmationStatus,
		m.ErrorMessage,
		m.CreatedAt,
		m.SubmittedAt,
		m.ConfirmedAt,
	).StructScan(m)
}

func dbGet(ctx context.Context, db *sqlx.DB, id string) (*model, error) {
	res := &model{}

	query := `SELECT * FROM ` + tableName + ` WHERE id = $1;`
	err := db.GetContext(ctx, res, query, id)
	if err != nil {
		return nil, pg.CheckNoRows(err, transaction.ErrNotFound)
	}
	return res, nil
}

func dbGetAllByStatus(ctx context.Context, db *sqlx.DB, chainId *string, status transaction.Status) ([]*model, error) {
	res := []*model{}

	var err error
	if chainId == nil {
		query := `SELECT * FROM ` + tableName + ` WHERE status = $1 ORDER BY created_at ASC, id ASC;`
		err = db.SelectContext(ctx, &res, query, uint(status))
	} else {
		query := `SELECT * FROM ` + tableName + ` WHERE status = $1 AND chain_id = $2 ORDER BY created_at ASC, id ASC;`
		err = db.SelectContext(ctx, &res, query, uint(status), *chainId)
	}
	if err != nil && !pg.IsNoRows(err) {
		return nil, err
	}
	return res, nil
}

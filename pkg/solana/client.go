package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

// Node is behind or otherwise unhealthy.
const rpcNodeUnhealthyCode = -32005

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	ConfirmationStatusProcessed = "processed"
	ConfirmationStatusConfirmed = "confirmed"
	ConfirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: ConfirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: ConfirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: ConfirmationStatusFinalized}
)

var (
	ErrNoAccountInfo  = errors.New("no account info")
	ErrFeeUnavailable = errors.New("fee unavailable for message")

	errRateLimited = errors.New("rate limited")
	errUnavailable = errors.New("rpc node unavailable")
)

// AccountInfo is the raw state of an account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Nil once the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized():
		return true
	case s.ConfirmationStatus == ConfirmationStatusConfirmed:
		return true
	default:
		return *s.Confirmations > 0
	}
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == ConfirmationStatusFinalized
}

// SendOptions are the optional sendTransaction parameters. Nil fields are
// left to the node's defaults.
type SendOptions struct {
	MaxRetries          *uint64 `json:"maxRetries,omitempty"`
	PreflightCommitment *string `json:"preflightCommitment,omitempty"`
	SkipPreflight       *bool   `json:"skipPreflight,omitempty"`
}

// Client is the subset of the Solana JSON-RPC API the wallet relies on.
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBlockHeight(Commitment) (uint64, error)
	GetFeeForMessage(encodedMessage string, commitment Commitment) (uint64, error)
	GetLatestBlockhash(Commitment) (Blockhash, uint64, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	SendTransaction(raw []byte, opts SendOptions) (string, error)
}

type ClientOption func(*client)

// WithRPCClientOpts configures the underlying JSON-RPC client.
func WithRPCClientOpts(opts *jsonrpc.RPCClientOpts) ClientOption {
	return func(c *client) {
		c.rpcOpts = opts
	}
}

// WithRetryStrategies replaces the default retry policy for rate limited or
// unavailable nodes.
func WithRetryStrategies(strategies ...retry.Strategy) ClientOption {
	return func(c *client) {
		c.strategies = strategies
	}
}

type client struct {
	log        *logrus.Entry
	rpc        jsonrpc.RPCClient
	rpcOpts    *jsonrpc.RPCClientOpts
	strategies []retry.Strategy
}

// New returns a JSON-RPC client for endpoint.
func New(endpoint string, opts ...ClientOption) Client {
	c := &client{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":     "solana/client",
			"endpoint": endpoint,
		}),
		strategies: []retry.Strategy{
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rpc = jsonrpc.NewClientWithOpts(endpoint, c.rpcOpts)
	c.strategies = append([]retry.Strategy{retry.RetriableErrors(errRateLimited, errUnavailable)}, c.strategies...)
	return c
}

// valueResponse is the {"context": ..., "value": ...} envelope most methods
// respond with.
type valueResponse[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	var last error
	_, err := retry.Retry(func() error {
		last = c.rpc.CallFor(out, method, params...)
		return c.classify(method, last)
	}, c.strategies...)
	if err == errRateLimited || err == errUnavailable {
		return errors.Wrap(last, err.Error())
	}
	return err
}

// classify maps transient failures onto retriable sentinels.
func (c *client) classify(method string, err error) error {
	if err == nil {
		return nil
	}

	code := 0
	switch e := err.(type) {
	case *jsonrpc.RPCError:
		code = e.Code
	case *jsonrpc.HTTPError:
		code = e.Code
	default:
		return err
	}

	log := c.log.WithField("method", method).WithError(err)
	switch {
	case code == http.StatusTooManyRequests:
		log.Warn("rate limited")
		return errRateLimited
	case code >= http.StatusInternalServerError || code == rpcNodeUnhealthyCode:
		log.Warn("rpc node unavailable")
		return errUnavailable
	}
	return err
}

func (c *client) GetBlockHeight(commitment Commitment) (uint64, error) {
	// Params must be an array even with a single config object.
	var height uint64
	if err := c.call(&height, "getBlockHeight", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getBlockHeight")
	}
	return height, nil
}

func (c *client) GetLatestBlockhash(commitment Commitment) (Blockhash, uint64, error) {
	var resp valueResponse[struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}]
	if err := c.call(&resp, "getLatestBlockhash", []interface{}{commitment}); err != nil {
		return Blockhash{}, 0, errors.Wrap(err, "getLatestBlockhash")
	}

	hash, err := BlockhashFromBase58(resp.Value.Blockhash)
	if err != nil {
		return Blockhash{}, 0, errors.Wrap(err, "invalid blockhash in response")
	}
	return hash, resp.Value.LastValidBlockHeight, nil
}

// GetFeeForMessage returns ErrFeeUnavailable when the node no longer knows
// the message's blockhash.
func (c *client) GetFeeForMessage(encodedMessage string, commitment Commitment) (uint64, error) {
	var resp valueResponse[*uint64]
	if err := c.call(&resp, "getFeeForMessage", encodedMessage, commitment); err != nil {
		return 0, errors.Wrap(err, "getFeeForMessage")
	}
	if resp.Value == nil {
		return 0, ErrFeeUnavailable
	}
	return *resp.Value, nil
}

// SendTransaction submits raw. A preflight failure is returned as a
// *TransactionError.
func (c *client) SendTransaction(raw []byte, opts SendOptions) (string, error) {
	config := struct {
		SendOptions
		Encoding string `json:"encoding"`
	}{
		SendOptions: opts,
		Encoding:    "base64",
	}

	var sig string
	err := c.call(&sig, "sendTransaction", base64.StdEncoding.EncodeToString(raw), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := errors.Cause(err).(*jsonrpc.RPCError)
	if !ok {
		return "", errors.Wrap(err, "sendTransaction")
	}
	if txErr, parseErr := ParseRPCError(rpcErr); parseErr == nil && txErr != nil {
		return "", txErr
	}
	return "", rpcErr
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp valueResponse[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid account owner")
	}
	if len(resp.Value.Data) == 0 {
		return AccountInfo{}, errors.New("missing account data")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid account data")
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}, nil
}

// GetSignatureStatuses returns one entry per node reported status, nil for
// unknown signatures. Callers match entries to sigs by position.
func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		encoded = append(encoded, base58.Encode(sig[:]))
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp valueResponse[[]*struct {
		Slot               uint64      `json:"slot"`
		Confirmations      *int        `json:"confirmations"`
		ConfirmationStatus string      `json:"confirmationStatus"`
		Err                interface{} `json:"err"`
	}]
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses")
	}

	statuses := make([]*SignatureStatus, len(resp.Value))
	for i, v := range resp.Value {
		if v == nil {
			continue
		}

		txErr, err := ParseTransactionError(v.Err)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid error for signature %d", i)
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			ErrorResult:        txErr,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}
	}
	return statuses, nil
}

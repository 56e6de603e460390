package keyring

import (
	"context"
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
)

const (
	metricsStructName = "wallet.keyring"
)

var (
	ErrUnknownAccount    = errors.New("account is not managed by the keyring")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Keyring signs messages on behalf of the accounts it manages.
type Keyring interface {
	SignMessage(ctx context.Context, account string, message []byte) ([]byte, error)
}

// Memory is a Keyring holding ed25519 keys in process memory, keyed by the
// base58 public key.
type Memory struct {
	log *logrus.Entry

	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

func NewMemory() *Memory {
	return &Memory{
		log:  logrus.StandardLogger().WithField("type", "wallet/keyring"),
		keys: make(map[string]ed25519.PrivateKey),
	}
}

// NewMemoryFromBase58 loads base58 encoded 64 byte secret keys.
func NewMemoryFromBase58(encodedKeys ...string) (*Memory, error) {
	k := NewMemory()
	for i, encoded := range encodedKeys {
		decoded, err := base58.Decode(encoded)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPrivateKey, "key %d is not base58", i)
		}
		if _, err := k.Add(ed25519.PrivateKey(decoded)); err != nil {
			return nil, errors.Wrapf(err, "key %d", i)
		}
	}
	return k, nil
}

// Add stores the key and returns the account it signs for.
func (k *Memory) Add(key ed25519.PrivateKey) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", ErrInvalidPrivateKey
	}

	account := base58.Encode(key.Public().(ed25519.PublicKey))

	k.mu.Lock()
	k.keys[account] = append(ed25519.PrivateKey(nil), key...)
	k.mu.Unlock()

	k.log.WithField("account", account).Debug("added account to keyring")
	return account, nil
}

// Accounts returns the managed accounts in sorted order.
func (k *Memory) Accounts() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	res := make([]string, 0, len(k.keys))
	for account := range k.keys {
		res = append(res, account)
	}
	sort.Strings(res)
	return res
}

func (k *Memory) SignMessage(ctx context.Context, account string, message []byte) ([]byte, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SignMessage")
	defer tracer.End()

	k.mu.RLock()
	key, ok := k.keys[account]
	k.mu.RUnlock()

	if !ok {
		tracer.OnError(ErrUnknownAccount)
		return nil, ErrUnknownAccount
	}

	return ed25519.Sign(key, message), nil
}

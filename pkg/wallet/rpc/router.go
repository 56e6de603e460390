package rpc

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sort"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

const (
	metricsStructName = "wallet.rpc.router"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// Router dispatches Solana JSON-RPC calls to the endpoint configured for each
// chain id.
type Router struct {
	log        *logrus.Entry
	clients    map[string]solana.Client
	collectors *metrics.Collectors
	commitment solana.Commitment
}

// NewRouter returns a Router over pre-built clients keyed by chain id.
func NewRouter(clients map[string]solana.Client, collectors *metrics.Collectors) (*Router, error) {
	normalized := make(map[string]solana.Client, len(clients))
	for chainId, client := range clients {
		if !chain.IsSolana(chainId) {
			return nil, errors.Wrapf(ErrUnsupportedChain, "chain %s", chainId)
		}
		normalized[chain.Normalize(chainId)] = client
	}

	return &Router{
		log:        logrus.StandardLogger().WithField("type", "wallet/rpc/router"),
		clients:    normalized,
		collectors: collectors,
		commitment: solana.CommitmentConfirmed,
	}, nil
}

var publicEndpoints = map[string]solana.Environment{
	chain.SolanaMainnet: solana.EnvironmentProd,
	chain.SolanaTestnet: solana.EnvironmentTest,
	chain.SolanaDevnet:  solana.EnvironmentDev,
}

// NewRouterFromEndpoints builds one JSON-RPC client per configured endpoint.
// An empty endpoint selects the cluster's public endpoint.
func NewRouterFromEndpoints(endpoints map[string]string, collectors *metrics.Collectors) (*Router, error) {
	clients := make(map[string]solana.Client, len(endpoints))
	for chainId, endpoint := range endpoints {
		if endpoint == "" {
			env, ok := publicEndpoints[chain.Normalize(chainId)]
			if !ok {
				return nil, errors.Wrapf(ErrUnsupportedChain, "chain %s", chainId)
			}
			endpoint = string(env)
		}
		clients[chainId] = solana.New(endpoint)
	}
	return NewRouter(clients, collectors)
}

// Chains returns the chain ids with a configured endpoint.
func (r *Router) Chains() []string {
	res := make([]string, 0, len(r.clients))
	for chainId := range r.clients {
		res = append(res, chainId)
	}
	sort.Strings(res)
	return res
}

func (r *Router) GetBlockHeight(ctx context.Context, chainId string) (height uint64, err error) {
	err = r.call(ctx, chainId, "GetBlockHeight", func(client solana.Client) error {
		height, err = client.GetBlockHeight(r.commitment)
		return err
	})
	return height, err
}

// GetLatestBlockhash returns the base58 blockhash and the last block height at
// which it is valid.
func (r *Router) GetLatestBlockhash(ctx context.Context, chainId string) (blockhash string, lastValidBlockHeight uint64, err error) {
	err = r.call(ctx, chainId, "GetLatestBlockhash", func(client solana.Client) error {
		hash, height, err := client.GetLatestBlockhash(r.commitment)
		if err != nil {
			return err
		}

		blockhash, lastValidBlockHeight = hash.String(), height
		return nil
	})
	return blockhash, lastValidBlockHeight, err
}

// SendTransaction submits a signed transaction, returning the base58 signature.
// Errors reported by the node are returned as-is.
func (r *Router) SendTransaction(ctx context.Context, chainId string, signed []byte, opts *solana.SendOptions) (sig string, err error) {
	var sendOpts solana.SendOptions
	if opts != nil {
		sendOpts = *opts
	}

	err = r.call(ctx, chainId, "SendTransaction", func(client solana.Client) error {
		sig, err = client.SendTransaction(signed, sendOpts)
		return err
	})
	return sig, err
}

// GetSignatureStatuses returns one status per signature, positionally. A nil
// entry means the node has no record of the signature.
func (r *Router) GetSignatureStatuses(ctx context.Context, chainId string, sigs []string) (statuses []*solana.SignatureStatus, err error) {
	decoded := make([]solana.Signature, len(sigs))
	for i, sig := range sigs {
		raw, err := base58.Decode(sig)
		if err != nil || len(raw) != ed25519.SignatureSize {
			return nil, errors.Errorf("invalid signature at %d: %s", i, sig)
		}
		copy(decoded[i][:], raw)
	}

	if len(decoded) == 0 {
		return nil, nil
	}

	err = r.call(ctx, chainId, "GetSignatureStatuses", func(client solana.Client) error {
		statuses, err = client.GetSignatureStatuses(decoded)
		return err
	})
	return statuses, err
}

func (r *Router) GetFeeForMessage(ctx context.Context, chainId, base64Message string) (fee uint64, err error) {
	if _, err := base64.StdEncoding.DecodeString(base64Message); err != nil {
		return 0, errors.Wrap(err, "invalid base64 message")
	}

	err = r.call(ctx, chainId, "GetFeeForMessage", func(client solana.Client) error {
		fee, err = client.GetFeeForMessage(base64Message, r.commitment)
		return err
	})
	return fee, err
}

// GetAccountInfo returns nil without error when the account does not exist.
func (r *Router) GetAccountInfo(ctx context.Context, chainId, address string) (*solana.AccountInfo, error) {
	account, err := chain.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	var info *solana.AccountInfo
	err = r.call(ctx, chainId, "GetAccountInfo", func(client solana.Client) error {
		res, err := client.GetAccountInfo(account, r.commitment)
		if err == solana.ErrNoAccountInfo {
			return nil
		} else if err != nil {
			return err
		}

		info = &res
		return nil
	})
	return info, err
}

func (r *Router) call(ctx context.Context, chainId, method string, fn func(solana.Client) error) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, method)
	tracer.AddAttribute("chain", chainId)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	client, ok := r.clients[chain.Normalize(chainId)]
	if !ok {
		return errors.Wrapf(ErrUnsupportedChain, "chain %s", chainId)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err = fn(client)
	r.collectors.RecordRPCCall(chainId, method, err, time.Since(start))

	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"chain":  chainId,
		}).Debug("rpc call failed")
	}
	return err
}

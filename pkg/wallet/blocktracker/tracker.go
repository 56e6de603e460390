package blocktracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/cache"
	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

const (
	metricsStructName = "wallet.blocktracker"

	cachedBlockhashAgeMetricName = "Custom/Wallet/BlockTracker/CachedBlockhashAge"

	maxCachedChains = 64
)

var (
	ErrStopped = errors.New("block tracker is stopped")
)

// RPC is the subset of the chain RPC the tracker polls.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, chainId string) (blockhash string, lastValidBlockHeight uint64, err error)
}

// Update is published to subscribers every time a tracked chain is polled.
type Update struct {
	ChainId              string
	Blockhash            string
	LastValidBlockHeight uint64
}

type cachedBlockhash struct {
	blockhash            string
	lastValidBlockHeight uint64
	fetchedAt            time.Time
}

// Tracker caches the latest blockhash per chain and polls the chains it is
// told to track, fanning updates out to subscribers.
type Tracker struct {
	log  *logrus.Entry
	conf *conf
	rpc  RPC

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	latest  *cache.Cache[cachedBlockhash]
	running map[string]context.CancelFunc

	subsMu  sync.Mutex
	subs    map[uint64]chan Update
	nextSub uint64
}

func New(rpc RPC, configProvider ConfigProvider) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	conf := configProvider()
	return &Tracker{
		log:     logrus.StandardLogger().WithField("type", "wallet/blocktracker"),
		conf:    conf,
		rpc:     rpc,
		ctx:     ctx,
		cancel:  cancel,
		latest:  cache.NewCache[cachedBlockhash](maxCachedChains, conf.cacheTTL.Get(ctx)),
		running: make(map[string]context.CancelFunc),
		subs:    make(map[uint64]chan Update),
	}
}

// GetLatestBlockhash returns the latest blockhash for the chain. A cached
// value younger than the cache ttl is returned unless force is set.
func (t *Tracker) GetLatestBlockhash(ctx context.Context, chainId string, force bool) (string, uint64, error) {
	chainId = chain.Normalize(chainId)

	if !force {
		cached, ok := t.latest.Retrieve(chainId)
		if age := time.Since(cached.fetchedAt); ok && age < t.conf.cacheTTL.Get(ctx) {
			metrics.RecordDuration(ctx, cachedBlockhashAgeMetricName, age)
			return cached.blockhash, cached.lastValidBlockHeight, nil
		}
	}

	return t.fetch(ctx, chainId)
}

func (t *Tracker) fetch(ctx context.Context, chainId string) (blockhash string, lastValidBlockHeight uint64, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "fetch")
	tracer.AddAttribute("chain", chainId)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	blockhash, lastValidBlockHeight, err = t.rpc.GetLatestBlockhash(ctx, chainId)
	if err != nil {
		return "", 0, errors.Wrapf(err, "error getting latest blockhash for chain %s", chainId)
	}

	t.latest.Insert(chainId, cachedBlockhash{
		blockhash:            blockhash,
		lastValidBlockHeight: lastValidBlockHeight,
		fetchedAt:            time.Now(),
	})

	return blockhash, lastValidBlockHeight, nil
}

// Subscribe returns a channel receiving updates for every tracked chain. The
// channel holds only the most recent undelivered update; older ones are
// dropped rather than blocking the tracker. The returned function
// unsubscribes and closes the channel.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	id := t.nextSub
	t.nextSub++

	ch := make(chan Update, 1)
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subsMu.Lock()
			defer t.subsMu.Unlock()

			if _, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(ch)
			}
		})
	}
}

func (t *Tracker) publish(update Update) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	for _, ch := range t.subs {
		select {
		case ch <- update:
			continue
		default:
		}

		// Replace the stale update with the latest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- update:
		default:
		}
	}
}

// Track polls exactly the provided chains: pollers start for new chains and
// stop for chains no longer listed.
func (t *Tracker) Track(chains []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx.Err() != nil {
		return
	}

	desired := make(map[string]struct{}, len(chains))
	for _, chainId := range chains {
		desired[chain.Normalize(chainId)] = struct{}{}
	}

	for chainId, stop := range t.running {
		if _, ok := desired[chainId]; !ok {
			stop()
			delete(t.running, chainId)
			t.log.WithField("chain", chainId).Debug("stopped tracking chain")
		}
	}

	for chainId := range desired {
		if _, ok := t.running[chainId]; ok {
			continue
		}

		ctx, cancel := context.WithCancel(t.ctx)
		t.running[chainId] = cancel

		t.wg.Add(1)
		go func(chainId string) {
			defer t.wg.Done()
			t.poll(ctx, chainId)
		}(chainId)

		t.log.WithField("chain", chainId).Debug("started tracking chain")
	}
}

// Tracking returns the chains currently being polled.
func (t *Tracker) Tracking() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := make([]string, 0, len(t.running))
	for chainId := range t.running {
		res = append(res, chainId)
	}
	return res
}

func (t *Tracker) poll(ctx context.Context, chainId string) {
	log := t.log.WithField("chain", chainId)

	ticker := time.NewTicker(t.conf.pollInterval.Get(ctx))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		func() {
			tracedCtx, cancel := context.WithTimeout(ctx, t.conf.requestTimeout.Get(ctx))
			defer cancel()

			tracedCtx, end := metrics.StartTransaction(tracedCtx, metricsStructName+"__poll")
			blockhash, lastValidBlockHeight, err := t.fetch(tracedCtx, chainId)
			end(err)
			if err != nil {
				log.WithError(err).Warn("failure polling latest blockhash")
				return
			}

			t.publish(Update{
				ChainId:              chainId,
				Blockhash:            blockhash,
				LastValidBlockHeight: lastValidBlockHeight,
			})
		}()
	}
}

// WithNewRelic attaches the application used to trace poll iterations. It
// must be called before any chain is tracked.
func (t *Tracker) WithNewRelic(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if nr, ok := metrics.NewRelicFromContext(ctx); ok {
		t.ctx = metrics.WithNewRelic(t.ctx, nr)
	}
}

// Stop halts all pollers and closes every subscription.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.cancel()
	t.running = make(map[string]context.CancelFunc)
	t.mu.Unlock()

	t.wg.Wait()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

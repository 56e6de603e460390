package blocklist

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/metrics"
)

const (
	metricsStructName = "wallet.blocklist"

	maxEstimatedAddresses        = 100000
	maxEstimatedAddressesErrRate = 0.001
)

// Blocklist holds sanctioned addresses that may not receive funds. A bloom
// filter answers the common negative case; positives are confirmed against
// the exact set.
type Blocklist struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func New(addresses ...string) *Blocklist {
	b := &Blocklist{
		filter: bloom.NewWithEstimates(uint(maxEstimatedAddresses), maxEstimatedAddressesErrRate),
		exact:  make(map[string]struct{}),
	}
	b.Add(addresses...)
	return b
}

// Load reads one address per line. Blank lines and lines starting with '#'
// are ignored.
func Load(r io.Reader) (*Blocklist, error) {
	b := New()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading blocklist")
	}

	return b, nil
}

func (b *Blocklist) Add(addresses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, address := range addresses {
		key := normalize(address)
		if key == "" {
			continue
		}

		b.filter.AddString(key)
		b.exact[key] = struct{}{}
	}
}

// IsBlocked reports whether the address is sanctioned.
func (b *Blocklist) IsBlocked(ctx context.Context, address string) bool {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "IsBlocked")
	defer tracer.End()

	key := normalize(address)
	if key == "" {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.filter.TestString(key) {
		return false
	}

	_, ok := b.exact[key]
	return ok
}

func (b *Blocklist) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact)
}

// Hex addresses are case insensitive, base58 addresses are not.
func normalize(address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return strings.ToLower(address)
	}
	return address
}

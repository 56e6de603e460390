package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

type store struct {
	mu      sync.Mutex
	records map[string]*transaction.Record
}

type byCreatedAt []*transaction.Record

func (a byCreatedAt) Len() int      { return len(a) }
func (a byCreatedAt) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byCreatedAt) Less(i, j int) bool {
	if a[i].CreatedAt.Equal(a[j].CreatedAt) {
		return a[i].Id < a[j].Id
	}
	return a[i].CreatedAt.Before(a[j].CreatedAt)
}

func New() transaction.Store {
	return &store{
		records: make(map[string]*transaction.Record),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*transaction.Record)
	s.mu.Unlock()
}

func (s *store) Put(_ context.Context, record *transaction.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Id] = record.Clone()
	return nil
}

func (s *store) Get(_ context.Context, id string) (*transaction.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *store) GetAllByStatus(_ context.Context, chainId *string, status transaction.Status) ([]*transaction.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*transaction.Record
	for _, record := range s.records {
		if record.Status != status {
			continue
		}
		if chainId != nil && record.ChainId != *chainId {
			continue
		}
		res = append(res, record.Clone())
	}

	sort.Sort(byCreatedAt(res))
	return res, nil
}

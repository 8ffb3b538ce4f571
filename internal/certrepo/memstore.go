// Package certrepo provides file-backed and in-memory implementations of
// the pkg/certrepo.Repository contract.
package certrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
	"github.com/nordiqpay/qcert-pki/pkg/qcerr"
)

// MemStore is an in-memory, mutex-guarded Repository, intended for tests
// and for hosts that don't need persistence across restarts.
type MemStore struct {
	mu         sync.RWMutex
	records    map[string]certrepo.Record
	crlCounter int64
}

var _ certrepo.Repository = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]certrepo.Record)}
}

func (s *MemStore) checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *MemStore) Add(ctx context.Context, rec certrepo.Record) (certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return certrepo.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.KeyID]; exists {
		return certrepo.Record{}, qcerr.NewWithKeyID("add", rec.KeyID, qcerr.ErrDuplicateKeyID)
	}
	if rec.CreatedDate.IsZero() {
		rec.CreatedDate = time.Now().UTC()
	}
	s.records[rec.KeyID] = rec
	return rec, nil
}

func (s *MemStore) GetByID(ctx context.Context, keyID string) (certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return certrepo.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[keyID]
	if !ok || rec.Revoked {
		return certrepo.Record{}, qcerr.NewWithKeyID("get", keyID, qcerr.ErrNotFound)
	}
	return rec, nil
}

func (s *MemStore) List(ctx context.Context, filter certrepo.ListFilter) ([]certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]certrepo.Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Revoked != nil && rec.Revoked != *filter.Revoked {
			continue
		}
		if filter.AuthorityKeyID != nil && rec.AuthorityKeyID != *filter.AuthorityKeyID {
			continue
		}
		if filter.NotBefore != nil && rec.CreatedDate.Before(*filter.NotBefore) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (s *MemStore) RevocationList(ctx context.Context, notBefore *time.Time) ([]certrepo.RevokedEntry, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []certrepo.RevokedEntry
	for _, rec := range s.records {
		if !rec.Revoked || rec.RevocationDate == nil {
			continue
		}
		if notBefore != nil && rec.RevocationDate.Before(*notBefore) {
			continue
		}
		out = append(out, certrepo.RevokedEntry{Serial: rec.SerialNumber, RevocationDate: *rec.RevocationDate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

func (s *MemStore) Revoke(ctx context.Context, keyID string) error {
	if err := s.checkCtx(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[keyID]
	if !ok {
		return qcerr.NewWithKeyID("revoke", keyID, qcerr.ErrNotFound)
	}
	if rec.Revoked {
		return nil
	}
	now := time.Now().UTC()
	rec.Revoked = true
	rec.RevocationDate = &now
	s.records[keyID] = rec
	return nil
}

func (s *MemStore) NextCRLNumber(ctx context.Context) (int64, error) {
	if err := s.checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.crlCounter++
	return s.crlCounter, nil
}

package certrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
	"github.com/nordiqpay/qcert-pki/pkg/qcerr"
)

// indexEntry is the persisted summary row kept in index.json. FileStore
// loads individual certificate records lazily from certs/<keyID>.json;
// the index exists purely to make List/RevocationList queries cheap
// without opening every record file.
type indexEntry struct {
	KeyID          string     `json:"key_id"`
	AuthorityKeyID string     `json:"authority_key_id"`
	Revoked        bool       `json:"revoked"`
	RevocationDate *time.Time `json:"revocation_date,omitempty"`
	CreatedDate    time.Time  `json:"created_date"`
	Serial         string     `json:"serial_number"`
}

// FileStore is a JSON-file-backed Repository. Directory layout:
//
//	<basePath>/certs/<keyID>.json   one file per certificate record
//	<basePath>/index.json           indexEntry list, for list/filter queries
//	<basePath>/crl-counter          decimal CRL serial counter
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

var _ certrepo.Repository = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at basePath. Call Init once
// before first use to create the directory layout.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

// Init creates the repository's directory layout if absent.
func (s *FileStore) Init() error {
	if err := os.MkdirAll(filepath.Join(s.basePath, "certs"), 0o755); err != nil {
		return fmt.Errorf("init certrepo: %w", err)
	}
	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		if err := s.writeIndex(nil); err != nil {
			return fmt.Errorf("init certrepo: %w", err)
		}
	}
	return nil
}

func (s *FileStore) indexPath() string        { return filepath.Join(s.basePath, "index.json") }
func (s *FileStore) recordPath(keyID string) string {
	return filepath.Join(s.basePath, "certs", keyID+".json")
}
func (s *FileStore) counterPath() string { return filepath.Join(s.basePath, "crl-counter") }

func (s *FileStore) checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *FileStore) readIndex() ([]indexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var entries []indexEntry
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse index: %w", err)
		}
	}
	return entries, nil
}

func (s *FileStore) writeIndex(entries []indexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

func (s *FileStore) Add(ctx context.Context, rec certrepo.Record) (certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return certrepo.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(rec.KeyID)); err == nil {
		return certrepo.Record{}, qcerr.NewWithKeyID("add", rec.KeyID, qcerr.ErrDuplicateKeyID)
	}
	if rec.CreatedDate.IsZero() {
		rec.CreatedDate = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return certrepo.Record{}, qcerr.New("add", fmt.Errorf("%w: %v", qcerr.ErrRepositoryUnavailable, err))
	}
	if err := os.WriteFile(s.recordPath(rec.KeyID), data, 0o600); err != nil {
		return certrepo.Record{}, qcerr.New("add", fmt.Errorf("%w: %v", qcerr.ErrRepositoryUnavailable, err))
	}

	entries, err := s.readIndex()
	if err != nil {
		return certrepo.Record{}, qcerr.New("add", err)
	}
	entries = append(entries, indexEntry{
		KeyID:          rec.KeyID,
		AuthorityKeyID: rec.AuthorityKeyID,
		Revoked:        rec.Revoked,
		RevocationDate: rec.RevocationDate,
		CreatedDate:    rec.CreatedDate,
		Serial:         rec.SerialNumber,
	})
	if err := s.writeIndex(entries); err != nil {
		return certrepo.Record{}, qcerr.New("add", err)
	}

	return rec, nil
}

func (s *FileStore) loadRecord(keyID string) (certrepo.Record, error) {
	data, err := os.ReadFile(s.recordPath(keyID))
	if os.IsNotExist(err) {
		return certrepo.Record{}, qcerr.NewWithKeyID("get", keyID, qcerr.ErrNotFound)
	}
	if err != nil {
		return certrepo.Record{}, fmt.Errorf("read record %s: %w", keyID, err)
	}
	var rec certrepo.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return certrepo.Record{}, fmt.Errorf("parse record %s: %w", keyID, err)
	}
	return rec, nil
}

func (s *FileStore) GetByID(ctx context.Context, keyID string) (certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return certrepo.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadRecord(keyID)
	if err != nil {
		return certrepo.Record{}, err
	}
	if rec.Revoked {
		return certrepo.Record{}, qcerr.NewWithKeyID("get", keyID, qcerr.ErrNotFound)
	}
	return rec, nil
}

func (s *FileStore) List(ctx context.Context, filter certrepo.ListFilter) ([]certrepo.Record, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		return nil, qcerr.New("list", err)
	}

	out := make([]certrepo.Record, 0, len(entries))
	for _, e := range entries {
		if filter.Revoked != nil && e.Revoked != *filter.Revoked {
			continue
		}
		if filter.AuthorityKeyID != nil && e.AuthorityKeyID != *filter.AuthorityKeyID {
			continue
		}
		if filter.NotBefore != nil && e.CreatedDate.Before(*filter.NotBefore) {
			continue
		}
		rec, err := s.loadRecord(e.KeyID)
		if err != nil {
			return nil, qcerr.New("list", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (s *FileStore) RevocationList(ctx context.Context, notBefore *time.Time) ([]certrepo.RevokedEntry, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		return nil, qcerr.New("revocation_list", err)
	}

	var out []certrepo.RevokedEntry
	for _, e := range entries {
		if !e.Revoked || e.RevocationDate == nil {
			continue
		}
		if notBefore != nil && e.RevocationDate.Before(*notBefore) {
			continue
		}
		out = append(out, certrepo.RevokedEntry{Serial: e.Serial, RevocationDate: *e.RevocationDate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

func (s *FileStore) Revoke(ctx context.Context, keyID string) error {
	if err := s.checkCtx(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadRecord(keyID)
	if err != nil {
		return err
	}
	if rec.Revoked {
		return nil
	}

	now := time.Now().UTC()
	rec.Revoked = true
	rec.RevocationDate = &now

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return qcerr.NewWithKeyID("revoke", keyID, fmt.Errorf("%w: %v", qcerr.ErrRepositoryUnavailable, err))
	}
	if err := os.WriteFile(s.recordPath(keyID), data, 0o600); err != nil {
		return qcerr.NewWithKeyID("revoke", keyID, fmt.Errorf("%w: %v", qcerr.ErrRepositoryUnavailable, err))
	}

	entries, err := s.readIndex()
	if err != nil {
		return qcerr.New("revoke", err)
	}
	for i := range entries {
		if entries[i].KeyID == keyID {
			entries[i].Revoked = true
			entries[i].RevocationDate = &now
			break
		}
	}
	return s.writeIndex(entries)
}

func (s *FileStore) NextCRLNumber(ctx context.Context) (int64, error) {
	if err := s.checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	data, err := os.ReadFile(s.counterPath())
	if err == nil {
		fmt.Sscanf(string(data), "%d", &n)
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("read crl counter: %w", err)
	}
	n++
	if err := os.WriteFile(s.counterPath(), []byte(fmt.Sprintf("%d", n)), 0o644); err != nil {
		return 0, fmt.Errorf("write crl counter: %w", err)
	}
	return n, nil
}

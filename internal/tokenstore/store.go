// Package tokenstore persists the Spotify token record. Every variant
// satisfies Store; the durable variants also satisfy Durable so the
// layered store can mirror memory into them.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
)

// Store is the token persistence capability consumed by the rest of the
// service. Get returns (nil, nil) when no record is stored.
type Store interface {
	Get() (*models.TokenRecord, error)
	Put(rec models.TokenRecord) (models.TokenRecord, error)
	Update(patch models.TokenPatch) (models.TokenRecord, error)
	Clear() error
}

// Durable is a backing tier behind the memory cache. Save writes the
// record verbatim; the caller has already stamped it.
type Durable interface {
	Load() (*models.TokenRecord, error)
	Save(rec models.TokenRecord) error
	Clear() error
	Name() string
}

// Blob is raw storage for one serialized record. Read returns (nil, nil)
// when nothing is stored and Delete on an empty blob is not an error.
type Blob interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Delete() error
}

// BlobStore adapts a Blob into a Store and a Durable by encoding the
// record as JSON.
type BlobStore struct {
	mu     sync.Mutex
	name   string
	blob   Blob
	indent bool
	now    func() time.Time
	logger *slog.Logger
}

// NewBlobStore creates a store named name on top of blob. When indent is
// true the JSON document is pretty-printed.
func NewBlobStore(name string, blob Blob, indent bool) *BlobStore {
	return &BlobStore{
		name:   name,
		blob:   blob,
		indent: indent,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Name identifies the backing medium in logs.
func (s *BlobStore) Name() string {
	return s.name
}

// Location is the on-disk path of the medium, or "" for media without
// one.
func (s *BlobStore) Location() string {
	if p, ok := s.blob.(interface{ Path() string }); ok {
		return p.Path()
	}

	return ""
}

// Load decodes the stored record. Unreadable or unparsable data is
// reported as ErrStoreRead.
func (s *BlobStore) Load() (*models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *BlobStore) load() (*models.TokenRecord, error) {
	data, err := s.blob.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrStoreRead, s.name, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var rec models.TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding record: %w", apperrors.ErrStoreRead, s.name, err)
	}

	return &rec, nil
}

// Save encodes and writes rec as is.
func (s *BlobStore) Save(rec models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(rec)
}

func (s *BlobStore) save(rec models.TokenRecord) error {
	var (
		data []byte
		err  error
	)

	if s.indent {
		data, err = json.MarshalIndent(rec, "", "  ")
	} else {
		data, err = json.Marshal(rec)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: encoding record: %w", apperrors.ErrStoreWrite, s.name, err)
	}

	if err := s.blob.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrStoreWrite, s.name, err)
	}

	return nil
}

// Get returns the stored record, or nil when none exists. Unreadable or
// unparsable data is logged and reported as absent.
func (s *BlobStore) Get() (*models.TokenRecord, error) {
	rec, err := s.Load()
	if err != nil {
		s.logger.Warn("reading token store, treating as empty",
			slog.String("backend", s.name),
			slog.String("error", err.Error()),
		)

		return nil, nil
	}

	return rec, nil
}

// Put stamps rec with a fresh expiry and replaces the stored record.
func (s *BlobStore) Put(rec models.TokenRecord) (models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamped := rec.Stamp(s.now())

	return stamped, s.save(stamped)
}

// Update merges patch into the stored record with a full rewrite. An
// unreadable record counts as absent.
func (s *BlobStore) Update(patch models.TokenPatch) (models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		current = nil
	}

	merged, err := models.Merge(current, patch, s.now())
	if err != nil {
		return models.TokenRecord{}, err
	}

	return merged, s.save(merged)
}

// Clear deletes the stored record.
func (s *BlobStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.blob.Delete(); err != nil {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrStoreWrite, s.name, err)
	}

	return nil
}

// Close releases the underlying blob if it holds resources.
func (s *BlobStore) Close() error {
	if c, ok := s.blob.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Package graphstore persists pipeline graphs.
package graphstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/graphfile"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

var (
	ErrNotFound  = errors.New("graph not found")
	ErrInvalidID = errors.New("invalid graph id")
)

// Record is a stored graph: its identity, timestamps and encoded content.
type Record struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name,omitempty"`
	Created  time.Time `yaml:"created"`
	Modified time.Time `yaml:"modified"`
	Content  string    `yaml:"content"`
}

// Store loads and saves graph records.
type Store interface {
	// Load returns the record of id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Record, error)
	// Save creates or replaces the record with the same id.
	Save(ctx context.Context, rec *Record) error
	// List returns the stored records sorted by id.
	List(ctx context.Context) ([]Record, error)
}

// SaveGraph encodes g and saves it, updating its modification time.
func SaveGraph(ctx context.Context, store Store, g *pipeline.Graph) error {
	g.Modified = time.Now().UTC()
	data, err := graphfile.Encode(g)
	if err != nil {
		return err
	}
	err = store.Save(ctx, &Record{
		ID:       g.ID,
		Name:     g.Name,
		Created:  g.Created,
		Modified: g.Modified,
		Content:  string(data),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to save graph %s", g.ID)
	}

	return nil
}

// LoadGraph loads and decodes the graph id.
func LoadGraph(ctx context.Context, store Store, id string, reg *pipeline.Registry, mode graphfile.LoadMode, observers ...model.Observer) (*pipeline.Graph, error) {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := graphfile.Decode([]byte(rec.Content), reg, mode, observers...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode graph %s", id)
	}

	return g, nil
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}

	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = *rec

	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Record, 0, len(s.records))
	for _, id := range slices.Sorted(maps.Keys(s.records)) {
		res = append(res, s.records[id])
	}

	return res, nil
}

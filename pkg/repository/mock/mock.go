package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is an in-memory repository.Store for tests. The *Err fields, when
// set, are returned by the matching operation instead of touching state.
type Store struct {
	CreateErr error
	ListErr   error
	PatchErr  error
	// PatchErrFor fails PatchDocument for specific ids only.
	PatchErrFor map[string]error

	mu      sync.Mutex
	docs    []models.Document
	runs    []models.JobRun
	Patches map[string][]models.Patch
	Closed  bool
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{Patches: map[string][]models.Patch{}}
}

func (m *Store) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Store) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s == nil {
		return fmt.Errorf("submission is nil")
	}
	if m.CreateErr != nil {
		return m.CreateErr
	}
	fields := schema.Fields(*s)
	if err := schema.CheckRecord(ctx, fields); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now()
	s.ID = uuid.NewString()
	s.CreatedAt, s.UpdatedAt = ts, ts
	m.docs = append(m.docs, models.Document{ID: s.ID, Fields: fields, CreatedAt: ts, UpdatedAt: ts})
	return nil
}

// Seed stores a raw document as-is, bypassing the record schema check.
// Missing ids are generated.
func (m *Store) Seed(docs ...models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = m.now()
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = d.CreatedAt
		}
		m.docs = append(m.docs, d)
	}
}

func (m *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Document, 0, len(m.docs))
	// newest insert first, then stable by createdAt
	for i := len(m.docs) - 1; i >= 0; i-- {
		d := m.docs[i]
		if d.Fields != nil {
			d.Fields = models.Patch{}.Apply(d.Fields)
		}
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b models.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *Store) PatchDocument(ctx context.Context, id string, p models.Patch) error {
	if m.PatchErr != nil {
		return m.PatchErr
	}
	if err, ok := m.PatchErrFor[id]; ok {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID != id {
			continue
		}
		m.docs[i].Fields = p.Apply(m.docs[i].Fields)
		m.docs[i].UpdatedAt = m.now()
		if m.Patches == nil {
			m.Patches = map[string][]models.Patch{}
		}
		m.Patches[id] = append(m.Patches[id], p)
		return nil
	}
	return fmt.Errorf("document %s not found", id)
}

// Document returns the stored fields of id.
func (m *Store) Document(id string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == id {
			return d, true
		}
	}
	return models.Document{}, false
}

func (m *Store) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *Store) RecordRun(ctx context.Context, r *models.JobRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *r)
	return r.ID, nil
}

func (m *Store) ListRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if name != "" && m.runs[i].Name != name {
			continue
		}
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Store) Close() error {
	m.Closed = true
	return nil
}

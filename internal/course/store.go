package course

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists courses and templates.
//
// Update is a compare-and-swap on Version: it fails with ErrConflict when the
// stored version differs from c.Version, and on success increments both.
// UpdateLesson replaces one lesson in place without touching the rest of the
// document and also bumps the version. ListByUser returns newest first and
// may omit subtopics and quiz.
//
// FindByTopic prefers the oldest course the learner started themselves and
// falls back to the oldest template copy. FindByTemplate returns the oldest
// copy of one template.
type Store interface {
	Create(ctx context.Context, c *Course) error
	Get(ctx context.Context, id string) (*Course, error)
	FindByTopic(ctx context.Context, tenantID, userID, topic string) (*Course, error)
	FindByTemplate(ctx context.Context, tenantID, userID, templateID string) (*Course, error)
	ListByUser(ctx context.Context, tenantID, userID string) ([]*Course, error)
	Update(ctx context.Context, c *Course) error
	UpdateLesson(ctx context.Context, courseID, subtopicID string, lesson Lesson) error

	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
}

// MemoryStore is an in-memory Store for development and tests. It stores and
// returns deep copies so callers never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	courses   map[string]*Course
	templates map[string]*Template
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:   make(map[string]*Course),
		templates: make(map[string]*Template),
	}
}

func (s *MemoryStore) Create(_ context.Context, c *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = NewID()
	}
	if _, exists := s.courses[c.ID]; exists {
		return fmt.Errorf("course %s already exists: %w", c.ID, ErrConflict)
	}
	if c.TopicKey == "" {
		c.TopicKey = TopicKey(c.Topic)
	}
	s.courses[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) FindByTopic(_ context.Context, tenantID, userID, topic string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := TopicKey(topic)
	var own, copied *Course
	for _, c := range s.courses {
		if c.TenantID != tenantID || c.UserID != userID || c.TopicKey != key {
			continue
		}
		if c.TemplateID == "" {
			own = older(own, c)
		} else {
			copied = older(copied, c)
		}
	}
	switch {
	case own != nil:
		return own.Clone(), nil
	case copied != nil:
		return copied.Clone(), nil
	}
	return nil, fmt.Errorf("course for topic %q: %w", topic, ErrNotFound)
}

func (s *MemoryStore) FindByTemplate(_ context.Context, tenantID, userID, templateID string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Course
	for _, c := range s.courses {
		if c.TenantID == tenantID && c.UserID == userID && templateID != "" && c.TemplateID == templateID {
			found = older(found, c)
		}
	}
	if found == nil {
		return nil, fmt.Errorf("course from template %s: %w", templateID, ErrNotFound)
	}
	return found.Clone(), nil
}

// older returns whichever course was created first, breaking ties by id.
func older(a, b *Course) *Course {
	switch {
	case a == nil:
		return b
	case b.CreatedAt.Before(a.CreatedAt):
		return b
	case b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID:
		return b
	}
	return a
}

func (s *MemoryStore) ListByUser(_ context.Context, tenantID, userID string) ([]*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Course
	for _, c := range s.courses {
		if c.TenantID == tenantID && c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, c *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.courses[c.ID]
	if !ok {
		return fmt.Errorf("course %s: %w", c.ID, ErrNotFound)
	}
	if stored.Version != c.Version {
		return fmt.Errorf("course %s at version %d, write based on %d: %w", c.ID, stored.Version, c.Version, ErrConflict)
	}
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	s.courses[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) UpdateLesson(_ context.Context, courseID, subtopicID string, lesson Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.courses[courseID]
	if !ok {
		return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	_, target, err := stored.Lesson(subtopicID, lesson.ID)
	if err != nil {
		return err
	}
	*target = lesson.clone()
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateTemplate(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = NewID()
	}
	s.templates[t.ID] = t.copy()
	return nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return t.copy(), nil
}

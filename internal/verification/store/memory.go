package store

import (
	"context"
	"sort"
	"sync"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

// MemoryVerificationStore is an in-memory VerificationStore for unit tests
// and local development. Safe for concurrent use.
type MemoryVerificationStore struct {
	mu   sync.RWMutex
	rows map[id.VerificationID]*models.Verification
}

var _ VerificationStore = (*MemoryVerificationStore)(nil)

func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{rows: make(map[id.VerificationID]*models.Verification)}
}

func (s *MemoryVerificationStore) Create(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[v.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *v
	s.rows[v.ID] = &clone
	return nil
}

func (s *MemoryVerificationStore) Get(_ context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.rows[verificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *MemoryVerificationStore) Update(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[v.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *v
	s.rows[v.ID] = &clone
	return nil
}

func (s *MemoryVerificationStore) Delete(_ context.Context, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[verificationID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, verificationID)
	return nil
}

func (s *MemoryVerificationStore) ListByParent(_ context.Context, root id.VerificationID) ([]*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chained []*models.Verification
	for _, v := range s.rows {
		if v.ParentID != nil && *v.ParentID == root {
			clone := *v
			chained = append(chained, &clone)
		}
	}
	sort.Slice(chained, func(i, j int) bool {
		return chained[i].CreatedAt.Before(chained[j].CreatedAt)
	})
	return chained, nil
}

func (s *MemoryVerificationStore) CountByParent(_ context.Context, root id.VerificationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, v := range s.rows {
		if v.ParentID != nil && *v.ParentID == root {
			count++
		}
	}
	return count, nil
}

func (s *MemoryVerificationStore) FindActiveRetry(_ context.Context, root id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.rows {
		if v.ParentID != nil && *v.ParentID == root && !v.Status.IsTerminal() {
			clone := *v
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// MemoryDocumentStore is an in-memory DocumentStore. Safe for concurrent use.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	rows map[id.DocumentID]*models.Document
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{rows: make(map[id.DocumentID]*models.Document)}
}

// Put stores the document and drops any prior document of the same kind on
// the verification. The replacement happens under one write lock so readers
// never observe two live documents of one kind.
func (s *MemoryDocumentStore) Put(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for existingID, existing := range s.rows {
		if existing.VerificationID == doc.VerificationID &&
			existing.IsSelfie() == doc.IsSelfie() && existingID != doc.ID {
			delete(s.rows, existingID)
		}
	}
	clone := *doc
	s.rows[doc.ID] = &clone
	return nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rows[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *MemoryDocumentStore) ListByVerification(_ context.Context, verificationID id.VerificationID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*models.Document
	for _, doc := range s.rows {
		if doc.VerificationID == verificationID {
			clone := *doc
			docs = append(docs, &clone)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryDocumentStore) DeleteByVerification(_ context.Context, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for documentID, doc := range s.rows {
		if doc.VerificationID == verificationID {
			delete(s.rows, documentID)
		}
	}
	return nil
}

// MemoryResultStore is an in-memory ResultStore. Safe for concurrent use.
type MemoryResultStore struct {
	mu   sync.RWMutex
	rows map[id.VerificationID]*models.VerificationResult
}

var _ ResultStore = (*MemoryResultStore)(nil)

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{rows: make(map[id.VerificationID]*models.VerificationResult)}
}

func (s *MemoryResultStore) Upsert(_ context.Context, result *models.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *result
	s.rows[result.VerificationID] = &clone
	return nil
}

func (s *MemoryResultStore) Get(_ context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.rows[verificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *result
	return &clone, nil
}

func (s *MemoryResultStore) DeleteByVerification(_ context.Context, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, verificationID)
	return nil
}

// MemoryWebhookEventStore is an in-memory WebhookEventStore. Safe for
// concurrent use.
type MemoryWebhookEventStore struct {
	mu   sync.RWMutex
	rows map[id.WebhookEventID]*models.WebhookEvent
}

var _ WebhookEventStore = (*MemoryWebhookEventStore)(nil)

func NewMemoryWebhookEventStore() *MemoryWebhookEventStore {
	return &MemoryWebhookEventStore{rows: make(map[id.WebhookEventID]*models.WebhookEvent)}
}

func (s *MemoryWebhookEventStore) Create(_ context.Context, event *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[event.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *event
	s.rows[event.ID] = &clone
	return nil
}

func (s *MemoryWebhookEventStore) Update(_ context.Context, event *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[event.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *event
	s.rows[event.ID] = &clone
	return nil
}

func (s *MemoryWebhookEventStore) Get(_ context.Context, eventID id.WebhookEventID) (*models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.rows[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *event
	return &clone, nil
}

func (s *MemoryWebhookEventStore) ListUndelivered(_ context.Context, limit int) ([]*models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.WebhookEvent
	for _, event := range s.rows {
		if !event.Delivered {
			clone := *event
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

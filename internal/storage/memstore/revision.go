// Package memstore provides in-process implementations of RevisionStore and
// ExecutionStore for unit tests and local development, grounded in tako's own
// heavy use of lightweight in-memory fakes for engine tests
// (internal/engine/test_helpers.go, testing_helpers.go) rather than a real
// backing store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

type revisionKey struct {
	namespace  string
	workflowID string
	version    int
}

// RevisionStore is an in-memory, mutex-guarded storage.RevisionStore.
type RevisionStore struct {
	mu        sync.Mutex
	revisions map[revisionKey]domain.WorkflowRevisionWithSource
	now       func() time.Time
}

var _ storage.RevisionStore = (*RevisionStore)(nil)

// NewRevisionStore returns an empty RevisionStore.
func NewRevisionStore() *RevisionStore {
	return &RevisionStore{
		revisions: make(map[revisionKey]domain.WorkflowRevisionWithSource),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *RevisionStore) maxVersion(namespace, workflowID string) int {
	max := 0
	for k := range s.revisions {
		if k.namespace == namespace && k.workflowID == workflowID && k.version > max {
			max = k.version
		}
	}
	return max
}

func (s *RevisionStore) CreateInitial(_ context.Context, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxVersion(rev.ID.Namespace, rev.ID.WorkflowID) > 0 {
		return domain.WorkflowRevision{}, storage.ErrAlreadyExists
	}

	rev.ID.Version = 1
	now := s.now()
	rev.CreatedAt = now
	rev.UpdatedAt = now
	key := revisionKey{rev.ID.Namespace, rev.ID.WorkflowID, 1}
	s.revisions[key] = domain.WorkflowRevisionWithSource{WorkflowRevision: rev, SourceDoc: sourceDoc}
	return rev, nil
}

func (s *RevisionStore) CreateNextRevision(_ context.Context, namespace, workflowID string, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := s.maxVersion(namespace, workflowID)
	if max == 0 {
		return domain.WorkflowRevision{}, storage.ErrWorkflowNotFound
	}

	rev.ID = domain.WorkflowRevisionID{Namespace: namespace, WorkflowID: workflowID, Version: max + 1}
	now := s.now()
	rev.CreatedAt = now
	rev.UpdatedAt = now
	key := revisionKey{namespace, workflowID, rev.ID.Version}
	s.revisions[key] = domain.WorkflowRevisionWithSource{WorkflowRevision: rev, SourceDoc: sourceDoc}
	return rev, nil
}

func (s *RevisionStore) FindByID(_ context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	withSrc, ok := s.revisions[revisionKey{id.Namespace, id.WorkflowID, id.Version}]
	if !ok {
		return nil, nil
	}
	rev := withSrc.WorkflowRevision
	return &rev, nil
}

func (s *RevisionStore) FindByIDWithSource(_ context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevisionWithSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	withSrc, ok := s.revisions[revisionKey{id.Namespace, id.WorkflowID, id.Version}]
	if !ok {
		return nil, nil
	}
	out := withSrc
	return &out, nil
}

func (s *RevisionStore) List(_ context.Context, namespace, workflowID string, activeOnly bool) ([]domain.WorkflowRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkflowRevision
	for k, v := range s.revisions {
		if k.namespace != namespace || k.workflowID != workflowID {
			continue
		}
		if activeOnly && !v.Active {
			continue
		}
		out = append(out, v.WorkflowRevision)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Version < out[j].ID.Version })
	return out, nil
}

func (s *RevisionStore) Update(_ context.Context, id domain.WorkflowRevisionID, updated domain.WorkflowRevision, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := revisionKey{id.Namespace, id.WorkflowID, id.Version}
	existing, ok := s.revisions[key]
	if !ok {
		return storage.ErrRevisionNotFound
	}
	if existing.Active {
		return storage.ErrActiveRevisionConflict
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return &storage.OptimisticLockError{Expected: expectedUpdatedAt, Actual: existing.UpdatedAt}
	}

	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.revisions[key] = domain.WorkflowRevisionWithSource{WorkflowRevision: updated, SourceDoc: existing.SourceDoc}
	return nil
}

func (s *RevisionStore) SetActive(_ context.Context, id domain.WorkflowRevisionID, desired bool, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := revisionKey{id.Namespace, id.WorkflowID, id.Version}
	existing, ok := s.revisions[key]
	if !ok {
		return storage.ErrRevisionNotFound
	}
	if existing.Active == desired {
		return nil
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return &storage.OptimisticLockError{Expected: expectedUpdatedAt, Actual: existing.UpdatedAt}
	}
	existing.Active = desired
	existing.UpdatedAt = s.now()
	s.revisions[key] = existing
	return nil
}

func (s *RevisionStore) DeleteRevision(_ context.Context, id domain.WorkflowRevisionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := revisionKey{id.Namespace, id.WorkflowID, id.Version}
	existing, ok := s.revisions[key]
	if !ok {
		return storage.ErrRevisionNotFound
	}
	if existing.Active {
		return storage.ErrActiveRevisionConflict
	}
	delete(s.revisions, key)
	return nil
}

func (s *RevisionStore) DeleteWorkflow(_ context.Context, namespace, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.revisions {
		if k.namespace != namespace || k.workflowID != workflowID {
			continue
		}
		if v.Active {
			return storage.ErrActiveRevisionConflict
		}
	}
	for k := range s.revisions {
		if k.namespace == namespace && k.workflowID == workflowID {
			delete(s.revisions, k)
		}
	}
	return nil
}

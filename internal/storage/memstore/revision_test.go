package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

func TestCreateInitial_AssignsVersionOne(t *testing.T) {
	s := NewRevisionStore()
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{
		ID: domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"},
	}, "source")
	require.NoError(t, err)
	assert.Equal(t, 1, rev.ID.Version)
	assert.False(t, rev.CreatedAt.IsZero())
	assert.Equal(t, rev.CreatedAt, rev.UpdatedAt)
}

func TestCreateInitial_RejectsSecondInitial(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	_, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)

	_, err = s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1-again")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestCreateNextRevision_RequiresExistingWorkflow(t *testing.T) {
	s := NewRevisionStore()
	_, err := s.CreateNextRevision(context.Background(), "ns", "wf", domain.WorkflowRevision{}, "src")
	assert.ErrorIs(t, err, storage.ErrWorkflowNotFound)
}

func TestCreateNextRevision_IncrementsVersion(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	_, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)

	next, err := s.CreateNextRevision(context.Background(), "ns", "wf", domain.WorkflowRevision{}, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, next.ID.Version)
}

func TestUpdate_RejectsWhileActive(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)
	require.NoError(t, s.SetActive(context.Background(), rev.ID, true, rev.UpdatedAt))

	err = s.Update(context.Background(), rev.ID, domain.WorkflowRevision{}, rev.UpdatedAt)
	assert.ErrorIs(t, err, storage.ErrActiveRevisionConflict)
}

func TestUpdate_OptimisticLockMismatch(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)

	err = s.Update(context.Background(), rev.ID, domain.WorkflowRevision{}, rev.UpdatedAt.Add(-1))
	var lockErr *storage.OptimisticLockError
	assert.ErrorAs(t, err, &lockErr)
}

func TestSetActive_IdempotentWhenAlreadyDesired(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)

	// Already inactive; deactivating again is a no-op regardless of stale
	// expectedUpdatedAt, since no write occurs.
	err = s.SetActive(context.Background(), rev.ID, false, rev.UpdatedAt.Add(-1))
	assert.NoError(t, err)
}

func TestDeleteWorkflow_RejectsIfAnyRevisionActive(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)
	require.NoError(t, s.SetActive(context.Background(), rev.ID, true, rev.UpdatedAt))

	err = s.DeleteWorkflow(context.Background(), "ns", "wf")
	assert.ErrorIs(t, err, storage.ErrActiveRevisionConflict)
}

func TestDeleteWorkflow_RemovesAllRevisions(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	_, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)
	_, err = s.CreateNextRevision(context.Background(), "ns", "wf", domain.WorkflowRevision{}, "v2")
	require.NoError(t, err)

	require.NoError(t, s.DeleteWorkflow(context.Background(), "ns", "wf"))

	revs, err := s.List(context.Background(), "ns", "wf", false)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestList_ActiveOnlyFiltersInactive(t *testing.T) {
	s := NewRevisionStore()
	id := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf"}
	rev, err := s.CreateInitial(context.Background(), domain.WorkflowRevision{ID: id}, "v1")
	require.NoError(t, err)
	_, err = s.CreateNextRevision(context.Background(), "ns", "wf", domain.WorkflowRevision{}, "v2")
	require.NoError(t, err)

	revs, err := s.List(context.Background(), "ns", "wf", true)
	require.NoError(t, err)
	assert.Empty(t, revs)

	require.NoError(t, s.SetActive(context.Background(), rev.ID, true, rev.UpdatedAt))
	revs, err = s.List(context.Background(), "ns", "wf", true)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 1, revs[0].ID.Version)
}

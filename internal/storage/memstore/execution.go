package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

type executionEntry struct {
	header  domain.WorkflowExecution
	results []domain.ExecutionStepResult
}

// ExecutionStore is an in-memory, mutex-guarded storage.ExecutionStore.
type ExecutionStore struct {
	mu         sync.Mutex
	executions map[string]*executionEntry
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// NewExecutionStore returns an empty ExecutionStore.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{executions: make(map[string]*executionEntry)}
}

func (s *ExecutionStore) CreateExecution(_ context.Context, header domain.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[header.ExecutionID]; exists {
		return storage.ErrAlreadyExists
	}
	s.executions[header.ExecutionID] = &executionEntry{header: header}
	return nil
}

func (s *ExecutionStore) AppendStepResult(_ context.Context, result domain.ExecutionStepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.executions[result.ExecutionID]
	if !ok {
		return storage.ErrExecutionNotFound
	}
	for _, existing := range entry.results {
		if existing.StepIndex == result.StepIndex {
			return nil // append-only; reject silently-idempotent duplicate index
		}
	}
	entry.results = append(entry.results, result)
	return nil
}

func (s *ExecutionStore) SetTerminal(_ context.Context, executionID string, status domain.ExecutionStatus, errorMessage string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.executions[executionID]
	if !ok {
		return storage.ErrExecutionNotFound
	}
	if entry.header.Status.IsTerminal() {
		return nil // idempotent
	}
	entry.header.Status = status
	entry.header.ErrorMessage = errorMessage
	c := completedAt
	entry.header.CompletedAt = &c
	entry.header.LastUpdatedAt = completedAt
	return nil
}

func (s *ExecutionStore) FindByID(_ context.Context, executionID string) (*domain.WorkflowExecution, []domain.ExecutionStepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.executions[executionID]
	if !ok {
		return nil, nil, nil
	}
	header := entry.header
	results := make([]domain.ExecutionStepResult, len(entry.results))
	copy(results, entry.results)
	sort.Slice(results, func(i, j int) bool { return results[i].StepIndex < results[j].StepIndex })
	return &header, results, nil
}

func (s *ExecutionStore) matching(namespace, workflowID string, filter storage.ExecutionFilter) []*executionEntry {
	var out []*executionEntry
	for _, e := range s.executions {
		if e.header.RevisionID.Namespace != namespace || e.header.RevisionID.WorkflowID != workflowID {
			continue
		}
		if filter.Version != nil && e.header.RevisionID.Version != *filter.Version {
			continue
		}
		if filter.Status != nil && e.header.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].header.StartedAt.After(out[j].header.StartedAt) })
	return out
}

func (s *ExecutionStore) FindByWorkflow(_ context.Context, namespace, workflowID string, filter storage.ExecutionFilter) (storage.ExecutionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.matching(namespace, workflowID, filter)
	total := len(all)

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	page := all[offset:end]
	summaries := make([]domain.ExecutionSummary, 0, len(page))
	for _, e := range page {
		completed, failed := 0, 0
		for _, r := range e.results {
			switch r.Status {
			case domain.StepCompleted:
				completed++
			case domain.StepFailed:
				failed++
			}
		}
		summaries = append(summaries, domain.ExecutionSummary{
			ExecutionID:     e.header.ExecutionID,
			Status:          e.header.Status,
			RevisionVersion: e.header.RevisionID.Version,
			StartedAt:       e.header.StartedAt,
			CompletedAt:     e.header.CompletedAt,
			StepCount:       len(e.results),
			CompletedSteps:  completed,
			FailedSteps:     failed,
		})
	}

	return storage.ExecutionPage{
		Executions: summaries,
		Total:      total,
		Limit:      limit,
		Offset:     filter.Offset,
		HasMore:    offset+len(page) < total,
	}, nil
}

func (s *ExecutionStore) CountByWorkflow(_ context.Context, namespace, workflowID string, filter storage.ExecutionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matching(namespace, workflowID, filter)), nil
}

// FindStaleRunning implements sweeper.StaleLister.
func (s *ExecutionStore) FindStaleRunning(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.executions {
		if e.header.Status == domain.StatusRunning && e.header.LastUpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

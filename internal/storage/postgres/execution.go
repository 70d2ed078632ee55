package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore over PostgreSQL. It also
// implements sweeper.StaleLister, since a production deployment needs both.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// NewExecutionStore wraps an existing pool. The caller owns the pool and is
// responsible for closing it.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

func (s *ExecutionStore) CreateExecution(ctx context.Context, header domain.WorkflowExecution) error {
	paramsJSON, err := json.Marshal(header.InputParameters)
	if err != nil {
		return fmt.Errorf("postgres: marshal input parameters: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_executions
		   (execution_id, namespace, workflow_id, revision_version, input_parameters, status, error_message, started_at, last_updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, '', $7, $8)`,
		header.ExecutionID, header.RevisionID.Namespace, header.RevisionID.WorkflowID, header.RevisionID.Version,
		paramsJSON, string(header.Status), header.StartedAt, header.LastUpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create execution: %w", err)
	}
	return nil
}

// AppendStepResult checkpoints one step outcome in its own transaction, per
// spec §4.3: exactly one commit per step result, never batched with others.
func (s *ExecutionStore) AppendStepResult(ctx context.Context, result domain.ExecutionStepResult) error {
	inputJSON, err := json.Marshal(result.InputData)
	if err != nil {
		return fmt.Errorf("postgres: marshal step input: %w", err)
	}
	var outputJSON []byte
	if result.OutputData != nil {
		outputJSON, err = json.Marshal(result.OutputData)
		if err != nil {
			return fmt.Errorf("postgres: marshal step output: %w", err)
		}
	}
	var detailsJSON []byte
	if result.ErrorDetails != nil {
		detailsJSON, err = json.Marshal(result.ErrorDetails)
		if err != nil {
			return fmt.Errorf("postgres: marshal error details: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workflow_executions WHERE execution_id = $1)`, result.ExecutionID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check execution exists: %w", err)
	}
	if !exists {
		return storage.ErrExecutionNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO execution_step_results
		   (result_id, execution_id, step_index, step_id, step_type, status, input_data, output_data, error_message, error_details, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10::jsonb, $11, $12)
		 ON CONFLICT (execution_id, step_index) DO NOTHING`,
		result.ResultID, result.ExecutionID, result.StepIndex, result.StepID, result.StepType, string(result.Status),
		inputJSON, nullableJSON(outputJSON), result.ErrorMessage, nullableJSON(detailsJSON), result.StartedAt, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: append step result: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *ExecutionStore) SetTerminal(ctx context.Context, executionID string, status domain.ExecutionStatus, errorMessage string, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflow_executions SET status = $1, error_message = $2, completed_at = $3, last_updated_at = $3
		 WHERE execution_id = $4 AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')`,
		string(status), errorMessage, completedAt, executionID)
	if err != nil {
		return fmt.Errorf("postgres: set terminal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workflow_executions WHERE execution_id = $1)`, executionID).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: verify execution exists: %w", err)
		}
		if !exists {
			return storage.ErrExecutionNotFound
		}
		// Already terminal: idempotent no-op per spec §4.3.
	}
	return nil
}

func (s *ExecutionStore) FindByID(ctx context.Context, executionID string) (*domain.WorkflowExecution, []domain.ExecutionStepResult, error) {
	var header domain.WorkflowExecution
	var paramsJSON []byte
	var status string
	header.ExecutionID = executionID

	err := s.pool.QueryRow(ctx,
		`SELECT namespace, workflow_id, revision_version, input_parameters, status, error_message, started_at, completed_at, last_updated_at
		 FROM workflow_executions WHERE execution_id = $1`, executionID,
	).Scan(&header.RevisionID.Namespace, &header.RevisionID.WorkflowID, &header.RevisionID.Version,
		&paramsJSON, &status, &header.ErrorMessage, &header.StartedAt, &header.CompletedAt, &header.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: find execution by id: %w", err)
	}
	header.Status = domain.ExecutionStatus(status)
	if err := json.Unmarshal(paramsJSON, &header.InputParameters); err != nil {
		return nil, nil, fmt.Errorf("postgres: unmarshal input parameters: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT result_id, step_index, step_id, step_type, status, input_data, output_data, error_message, error_details, started_at, completed_at
		 FROM execution_step_results WHERE execution_id = $1 ORDER BY step_index ASC`, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: list step results: %w", err)
	}
	defer rows.Close()

	results, err := scanStepResults(rows, executionID)
	if err != nil {
		return nil, nil, err
	}
	return &header, results, nil
}

func (s *ExecutionStore) FindByWorkflow(ctx context.Context, namespace, workflowID string, filter storage.ExecutionFilter) (storage.ExecutionPage, error) {
	where := []string{"namespace = $1", "workflow_id = $2"}
	args := []any{namespace, workflowID}
	if filter.Version != nil {
		args = append(args, *filter.Version)
		where = append(where, fmt.Sprintf("revision_version = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM workflow_executions WHERE ` + whereClause
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return storage.ExecutionPage{}, fmt.Errorf("postgres: count executions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(
		`SELECT e.execution_id, e.status, e.revision_version, e.started_at, e.completed_at,
		        COUNT(r.result_id) FILTER (WHERE TRUE) AS step_count,
		        COUNT(r.result_id) FILTER (WHERE r.status = 'COMPLETED') AS completed_steps,
		        COUNT(r.result_id) FILTER (WHERE r.status = 'FAILED') AS failed_steps
		 FROM workflow_executions e
		 LEFT JOIN execution_step_results r ON r.execution_id = e.execution_id
		 WHERE %s
		 GROUP BY e.execution_id
		 ORDER BY e.started_at DESC
		 LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return storage.ExecutionPage{}, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ExecutionSummary
	for rows.Next() {
		var sum domain.ExecutionSummary
		var status string
		if err := rows.Scan(&sum.ExecutionID, &status, &sum.RevisionVersion, &sum.StartedAt, &sum.CompletedAt, &sum.StepCount, &sum.CompletedSteps, &sum.FailedSteps); err != nil {
			return storage.ExecutionPage{}, fmt.Errorf("postgres: scan execution summary: %w", err)
		}
		sum.Status = domain.ExecutionStatus(status)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return storage.ExecutionPage{}, err
	}

	return storage.ExecutionPage{
		Executions: summaries,
		Total:      total,
		Limit:      limit,
		Offset:     filter.Offset,
		HasMore:    filter.Offset+len(summaries) < total,
	}, nil
}

func (s *ExecutionStore) CountByWorkflow(ctx context.Context, namespace, workflowID string, filter storage.ExecutionFilter) (int, error) {
	where := []string{"namespace = $1", "workflow_id = $2"}
	args := []any{namespace, workflowID}
	if filter.Version != nil {
		args = append(args, *filter.Version)
		where = append(where, fmt.Sprintf("revision_version = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM workflow_executions WHERE `+strings.Join(where, " AND "), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count by workflow: %w", err)
	}
	return count, nil
}

// FindStaleRunning implements sweeper.StaleLister.
func (s *ExecutionStore) FindStaleRunning(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT execution_id FROM workflow_executions WHERE status = 'RUNNING' AND last_updated_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: find stale running: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan stale execution id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanStepResults(rows pgx.Rows, executionID string) ([]domain.ExecutionStepResult, error) {
	var out []domain.ExecutionStepResult
	for rows.Next() {
		var r domain.ExecutionStepResult
		var status string
		var inputJSON, outputJSON, detailsJSON []byte
		r.ExecutionID = executionID
		if err := rows.Scan(&r.ResultID, &r.StepIndex, &r.StepID, &r.StepType, &status, &inputJSON, &outputJSON, &r.ErrorMessage, &detailsJSON, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan step result: %w", err)
		}
		r.Status = domain.StepResultStatus(status)
		if err := json.Unmarshal(inputJSON, &r.InputData); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal step input: %w", err)
		}
		if outputJSON != nil {
			if err := json.Unmarshal(outputJSON, &r.OutputData); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal step output: %w", err)
			}
		}
		if detailsJSON != nil {
			r.ErrorDetails = &domain.ErrorDetails{}
			if err := json.Unmarshal(detailsJSON, r.ErrorDetails); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal error details: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

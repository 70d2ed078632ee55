// Package postgres implements storage.RevisionStore and storage.ExecutionStore
// on top of pgx, grounded in nevindra-oasis's store/postgres package: a thin
// struct wrapping an externally-owned *pgxpool.Pool, manual SQL (with
// ON CONFLICT DO NOTHING for step-result inserts), and pool.Begin(ctx)-scoped
// transactions for any write
// that touches more than one table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

// RevisionStore implements storage.RevisionStore over PostgreSQL.
type RevisionStore struct {
	pool *pgxpool.Pool
}

var _ storage.RevisionStore = (*RevisionStore)(nil)

// NewRevisionStore wraps an existing pool. The caller owns the pool and is
// responsible for closing it.
func NewRevisionStore(pool *pgxpool.Pool) *RevisionStore {
	return &RevisionStore{pool: pool}
}

func (s *RevisionStore) CreateInitial(ctx context.Context, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error) {
	paramsJSON, err := json.Marshal(rev.Parameters)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: marshal parameters: %w", err)
	}
	rootJSON, err := json.Marshal(rev.RootStep)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: marshal root step: %w", err)
	}

	now := time.Now().UTC()
	rev.ID.Version = 1
	rev.CreatedAt = now
	rev.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_revisions
		   (namespace, workflow_id, version, name, description, parameters, root_step, source_doc, active, created_at, updated_at)
		 VALUES ($1, $2, 1, $3, $4, $5::jsonb, $6::jsonb, $7, FALSE, $8, $9)`,
		rev.ID.Namespace, rev.ID.WorkflowID, rev.Name, rev.Description, paramsJSON, rootJSON, sourceDoc, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WorkflowRevision{}, storage.ErrAlreadyExists
		}
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: create initial revision: %w", err)
	}
	return rev, nil
}

func (s *RevisionStore) CreateNextRevision(ctx context.Context, namespace, workflowID string, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error) {
	paramsJSON, err := json.Marshal(rev.Parameters)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: marshal parameters: %w", err)
	}
	rootJSON, err := json.Marshal(rev.RootStep)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: marshal root step: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var maxVersion int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2`,
		namespace, workflowID,
	).Scan(&maxVersion)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: find max version: %w", err)
	}
	if maxVersion == 0 {
		return domain.WorkflowRevision{}, storage.ErrWorkflowNotFound
	}

	now := time.Now().UTC()
	nextVersion := maxVersion + 1
	rev.ID = domain.WorkflowRevisionID{Namespace: namespace, WorkflowID: workflowID, Version: nextVersion}
	rev.CreatedAt = now
	rev.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`INSERT INTO workflow_revisions
		   (namespace, workflow_id, version, name, description, parameters, root_step, source_doc, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, FALSE, $9, $10)`,
		namespace, workflowID, nextVersion, rev.Name, rev.Description, paramsJSON, rootJSON, sourceDoc, now, now)
	if err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: create next revision: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WorkflowRevision{}, fmt.Errorf("postgres: commit tx: %w", err)
	}
	return rev, nil
}

func (s *RevisionStore) FindByID(ctx context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevision, error) {
	withSrc, err := s.FindByIDWithSource(ctx, id)
	if err != nil || withSrc == nil {
		return nil, err
	}
	rev := withSrc.WorkflowRevision
	return &rev, nil
}

func (s *RevisionStore) FindByIDWithSource(ctx context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevisionWithSource, error) {
	var rev domain.WorkflowRevision
	var sourceDoc string
	var paramsJSON, rootJSON []byte
	rev.ID = id

	err := s.pool.QueryRow(ctx,
		`SELECT name, description, parameters, root_step, source_doc, active, created_at, updated_at
		 FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2 AND version = $3`,
		id.Namespace, id.WorkflowID, id.Version,
	).Scan(&rev.Name, &rev.Description, &paramsJSON, &rootJSON, &sourceDoc, &rev.Active, &rev.CreatedAt, &rev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find revision by id: %w", err)
	}
	if err := json.Unmarshal(paramsJSON, &rev.Parameters); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(rootJSON, &rev.RootStep); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal root step: %w", err)
	}
	return &domain.WorkflowRevisionWithSource{WorkflowRevision: rev, SourceDoc: sourceDoc}, nil
}

func (s *RevisionStore) List(ctx context.Context, namespace, workflowID string, activeOnly bool) ([]domain.WorkflowRevision, error) {
	query := `SELECT version, name, description, parameters, root_step, active, created_at, updated_at
	          FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY version ASC`

	rows, err := s.pool.Query(ctx, query, namespace, workflowID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkflowRevision
	for rows.Next() {
		var rev domain.WorkflowRevision
		var paramsJSON, rootJSON []byte
		rev.ID = domain.WorkflowRevisionID{Namespace: namespace, WorkflowID: workflowID}
		if err := rows.Scan(&rev.ID.Version, &rev.Name, &rev.Description, &paramsJSON, &rootJSON, &rev.Active, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan revision: %w", err)
		}
		if err := json.Unmarshal(paramsJSON, &rev.Parameters); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal parameters: %w", err)
		}
		if err := json.Unmarshal(rootJSON, &rev.RootStep); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal root step: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (s *RevisionStore) Update(ctx context.Context, id domain.WorkflowRevisionID, updated domain.WorkflowRevision, expectedUpdatedAt time.Time) error {
	paramsJSON, err := json.Marshal(updated.Parameters)
	if err != nil {
		return fmt.Errorf("postgres: marshal parameters: %w", err)
	}
	rootJSON, err := json.Marshal(updated.RootStep)
	if err != nil {
		return fmt.Errorf("postgres: marshal root step: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var active bool
	var actualUpdatedAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT active, updated_at FROM workflow_revisions
		 WHERE namespace = $1 AND workflow_id = $2 AND version = $3 FOR UPDATE`,
		id.Namespace, id.WorkflowID, id.Version,
	).Scan(&active, &actualUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrRevisionNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: load revision for update: %w", err)
	}
	if active {
		return storage.ErrActiveRevisionConflict
	}
	if !actualUpdatedAt.Equal(expectedUpdatedAt) {
		return &storage.OptimisticLockError{Expected: expectedUpdatedAt, Actual: actualUpdatedAt}
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE workflow_revisions SET name = $1, description = $2, parameters = $3::jsonb, root_step = $4::jsonb, updated_at = $5
		 WHERE namespace = $6 AND workflow_id = $7 AND version = $8`,
		updated.Name, updated.Description, paramsJSON, rootJSON, now, id.Namespace, id.WorkflowID, id.Version)
	if err != nil {
		return fmt.Errorf("postgres: update revision: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *RevisionStore) SetActive(ctx context.Context, id domain.WorkflowRevisionID, desired bool, expectedUpdatedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var active bool
	var actualUpdatedAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT active, updated_at FROM workflow_revisions
		 WHERE namespace = $1 AND workflow_id = $2 AND version = $3 FOR UPDATE`,
		id.Namespace, id.WorkflowID, id.Version,
	).Scan(&active, &actualUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrRevisionNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: load revision for set-active: %w", err)
	}
	if active == desired {
		return nil
	}
	if !actualUpdatedAt.Equal(expectedUpdatedAt) {
		return &storage.OptimisticLockError{Expected: expectedUpdatedAt, Actual: actualUpdatedAt}
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE workflow_revisions SET active = $1, updated_at = $2
		 WHERE namespace = $3 AND workflow_id = $4 AND version = $5`,
		desired, now, id.Namespace, id.WorkflowID, id.Version)
	if err != nil {
		return fmt.Errorf("postgres: set active: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *RevisionStore) DeleteRevision(ctx context.Context, id domain.WorkflowRevisionID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var active bool
	err = tx.QueryRow(ctx,
		`SELECT active FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2 AND version = $3 FOR UPDATE`,
		id.Namespace, id.WorkflowID, id.Version,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrRevisionNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: load revision for delete: %w", err)
	}
	if active {
		return storage.ErrActiveRevisionConflict
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2 AND version = $3`,
		id.Namespace, id.WorkflowID, id.Version)
	if err != nil {
		return fmt.Errorf("postgres: delete revision: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *RevisionStore) DeleteWorkflow(ctx context.Context, namespace, workflowID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var activeCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM (SELECT 1 FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2 AND active = TRUE FOR UPDATE) AS active_revisions`,
		namespace, workflowID,
	).Scan(&activeCount)
	if err != nil {
		return fmt.Errorf("postgres: count active revisions: %w", err)
	}
	if activeCount > 0 {
		return storage.ErrActiveRevisionConflict
	}

	_, err = tx.Exec(ctx, `DELETE FROM workflow_revisions WHERE namespace = $1 AND workflow_id = $2`, namespace, workflowID)
	if err != nil {
		return fmt.Errorf("postgres: delete workflow: %w", err)
	}
	return tx.Commit(ctx)
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the code raised against the version=1 partial index.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

const jobColumns = `id, priority, status, source, source_type, options, result_id,
	error_message, worker, created_at, started_at, finished_at`

const resultColumns = `id, job_id, source_id, language, item_count, metadata, status, created_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	if err := CheckNewJob(job); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, priority, status, source, source_type, options, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, string(job.Priority), string(job.Status), job.Source, string(job.SourceType),
		job.Options, job.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID, worker string, startedAt time.Time) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'running', started_at = $2, worker = $3
		 WHERE id = $1 AND status = 'queued'
		 RETURNING `+jobColumns,
		id, startedAt, worker))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.notInState(ctx, s.pool, id, models.JobStatusRunning)
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.AnalysisResult, items []models.ResultItem, finishedAt time.Time) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.Status == "" {
		result.Status = models.ResultStatusCompleted
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = finishedAt
	}
	result.JobID = jobID
	result.ItemCount = len(items)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO analysis_results (`+resultColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			result.ID, result.JobID, result.SourceID, result.Language, result.ItemCount,
			result.Metadata, result.Status, result.CreatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("insert analysis result: %w", err)
		}

		if len(items) > 0 {
			batch := &pgx.Batch{}
			for i := range items {
				it := &items[i]
				if it.ID == uuid.Nil {
					it.ID = uuid.New()
				}
				it.ResultID = result.ID
				batch.Queue(
					`INSERT INTO result_items (id, result_id, position, text, category, confidence, element_kind, interactive)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					it.ID, it.ResultID, it.Position, it.Text, it.Category, it.Confidence, it.ElementKind, it.Interactive)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert result items: %w", err)
			}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE jobs SET status = 'finished', result_id = $2, finished_at = $3
			 WHERE id = $1 AND status = 'running'`,
			jobID, result.ID, finishedAt)
		if err != nil {
			return fmt.Errorf("finish job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.notInState(ctx, tx, jobID, models.JobStatusFinished)
		}
		return nil
	})
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID uuid.UUID, message string, finishedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_message = $2, finished_at = $3
		 WHERE id = $1 AND status = 'running'`,
		jobID, message, finishedAt)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notInState(ctx, s.pool, jobID, models.JobStatusFailed)
	}
	return nil
}

func (s *PostgresStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE status IN ('finished', 'failed') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	q := psql.Select(jobColumns).From("jobs").OrderBy("created_at ASC")
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where(sq.Eq{"status": statuses})
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where(sq.Lt{"created_at": filter.CreatedBefore})
	}
	if !filter.StartedBefore.IsZero() {
		q = q.Where(sq.Lt{"started_at": filter.StartedBefore})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list jobs query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int, 4)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// --- Analysis Results ---

func (s *PostgresStore) GetAnalysisResult(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	r, err := scanResult(s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM analysis_results WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetAnalysisResultByJobID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisResult, error) {
	r, err := scanResult(s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM analysis_results WHERE job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result by job: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListResultItems(ctx context.Context, resultID uuid.UUID) ([]models.ResultItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, result_id, position, text, category, confidence, element_kind, interactive
		 FROM result_items WHERE result_id = $1 ORDER BY position`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list result items: %w", err)
	}
	defer rows.Close()

	items := []models.ResultItem{}
	for rows.Next() {
		var it models.ResultItem
		if err := rows.Scan(&it.ID, &it.ResultID, &it.Position, &it.Text, &it.Category,
			&it.Confidence, &it.ElementKind, &it.Interactive); err != nil {
			return nil, fmt.Errorf("scan result item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notInState explains why a conditional update towards status to matched no
// rows.
func (s *PostgresStore) notInState(ctx context.Context, q querier, id uuid.UUID, to models.JobStatus) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup job status: %w", err)
	}
	return TransitionError(id, models.JobStatus(status), to)
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var priority, status, sourceType string
	err := row.Scan(&j.ID, &priority, &status, &j.Source, &sourceType, &j.Options, &j.ResultID,
		&j.ErrorMessage, &j.Worker, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	j.Priority = models.Priority(priority)
	j.Status = models.JobStatus(status)
	j.SourceType = models.SourceType(sourceType)
	return &j, nil
}

func scanResult(row pgx.Row) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	err := row.Scan(&r.ID, &r.JobID, &r.SourceID, &r.Language, &r.ItemCount, &r.Metadata, &r.Status, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Skyline/internal/domain"
)

// activeRunIndex — частичный уникальный индекс "один активный run на pipeline".
const activeRunIndex = "runs_one_active_per_pipeline"

const runColumns = `id, pipeline, trigger_source, event_type, state, outcome, stages,
	failed_stage, error, started_at, finished_at, created_at`

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Pipeline string
	Outcome  domain.RunOutcome
	Limit    int
	Offset   int
}

// RunRepo — репозиторий runs в PostgreSQL.
//
// Проверка активного run атомарна на уровне БД: частичный уникальный индекс
// по pipeline для outcome = 'in_progress' не даст двум контроллерам
// одновременно начать run одного pipeline.
//
// Активный run держит lease: владелец продлевает heartbeat_at через Save и
// Heartbeat. AbortStale закрывает только runs с истёкшим lease, поэтому
// старт одного экземпляра не прерывает runs живого соседа.
type RunRepo struct {
	pool  *pgxpool.Pool
	owner string
}

// NewRunRepo создаёт новый RunRepo. owner — идентификатор экземпляра контроллера.
func NewRunRepo(pool *pgxpool.Pool, owner string) *RunRepo {
	return &RunRepo{pool: pool, owner: owner}
}

// Begin вставляет новый run, если у pipeline нет активного.
// Если активный run есть, возвращает его ID и ошибку, оборачивающую domain.ErrRunActive.
func (r *RunRepo) Begin(ctx context.Context, run *domain.Run) (uuid.UUID, error) {
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal stages: %w", err)
	}

	query := `
		INSERT INTO runs (id, pipeline, trigger_source, event_type, state, outcome, stages, started_at, created_at, owner, heartbeat_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Pipeline,
		run.TriggerSource,
		nullString(run.EventType),
		run.State,
		run.Outcome,
		stagesJSON,
		run.StartedAt,
		run.CreatedAt,
		nullString(r.owner),
	)
	if err == nil {
		return run.ID, nil
	}

	if !isUniqueViolation(err, activeRunIndex) {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	active, getErr := r.GetActive(ctx, run.Pipeline)
	if getErr != nil {
		// Активный run мог завершиться между INSERT и SELECT
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrRunActive, run.Pipeline)
	}
	return active.ID, fmt.Errorf("%w: %s (run %s)", domain.ErrRunActive, run.Pipeline, active.ID)
}

// Save обновляет состояние, стадии и итог run.
// Завершённый run не меняется: такое обновление возвращает ErrInvalidState.
func (r *RunRepo) Save(ctx context.Context, run *domain.Run) error {
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	query := `
		UPDATE runs
		SET state = $2, outcome = $3, stages = $4, failed_stage = $5, error = $6, finished_at = $7,
		    heartbeat_at = now()
		WHERE id = $1 AND outcome = 'in_progress'
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.State,
		run.Outcome,
		stagesJSON,
		nullString(run.FailedStage),
		nullString(run.Error),
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %w: run %s", ErrInvalidState, domain.ErrRunNotInProgress, run.ID)
	}
	return nil
}

// Heartbeat продлевает lease активного run.
// Закрытый run (например, прерванный через AbortStale) даёт domain.ErrRunNotInProgress.
func (r *RunRepo) Heartbeat(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE runs SET heartbeat_at = now() WHERE id = $1 AND outcome = 'in_progress'`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("heartbeat run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %w: run %s", ErrInvalidState, domain.ErrRunNotInProgress, id)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetActive возвращает активный run pipeline.
func (r *RunRepo) GetActive(ctx context.Context, pipeline string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE pipeline = $1 AND outcome = 'in_progress'`
	return scanRun(r.pool.QueryRow(ctx, query, pipeline))
}

// List возвращает список runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR outcome = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Outcome)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// AbortStale помечает aborted активные runs, lease которых не продлевался дольше staleAfter.
// Вызывается при старте контроллера: владельцы таких runs завершились
// вместе с состоянием последовательности.
func (r *RunRepo) AbortStale(ctx context.Context, reason string, staleAfter time.Duration) (int, error) {
	query := `
		UPDATE runs
		SET state = $1, outcome = $2, error = $3, finished_at = $4
		WHERE outcome = 'in_progress'
		  AND (heartbeat_at IS NULL OR heartbeat_at < now() - make_interval(secs => $5))
	`
	result, err := r.pool.Exec(ctx, query,
		domain.RunStateAborted,
		domain.RunOutcomeAborted,
		reason,
		time.Now(),
		staleAfter.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("abort stale runs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// RecordDropped сохраняет отброшенный trigger.
func (r *RunRepo) RecordDropped(ctx context.Context, d domain.DroppedTrigger) error {
	query := `
		INSERT INTO dropped_triggers (pipeline, source_location, event_type, active_run_id, dropped_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		d.Pipeline,
		d.SourceLocation,
		nullString(d.EventType),
		nullUUID(d.ActiveRunID),
		d.DroppedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dropped trigger: %w", err)
	}
	return nil
}

// ListDropped возвращает отброшенные triggers pipeline, новые первыми.
func (r *RunRepo) ListDropped(ctx context.Context, pipeline string, limit int) ([]domain.DroppedTrigger, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT pipeline, source_location, event_type, active_run_id, dropped_at
		FROM dropped_triggers
		WHERE ($1::text IS NULL OR pipeline = $1)
		ORDER BY dropped_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(pipeline), limit)
	if err != nil {
		return nil, fmt.Errorf("list dropped triggers: %w", err)
	}
	defer rows.Close()

	var out []domain.DroppedTrigger
	for rows.Next() {
		var d domain.DroppedTrigger
		var eventType *string
		var activeRunID *uuid.UUID
		if err := rows.Scan(&d.Pipeline, &d.SourceLocation, &eventType, &activeRunID, &d.DroppedAt); err != nil {
			return nil, fmt.Errorf("scan dropped trigger: %w", err)
		}
		if eventType != nil {
			d.EventType = *eventType
		}
		if activeRunID != nil {
			d.ActiveRunID = *activeRunID
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Helpers ---

// scanRun сканирует одну строку в Run. pgx.Rows тоже удовлетворяет pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var stagesJSON []byte
	var eventType, failedStage, runError *string

	err := row.Scan(
		&run.ID,
		&run.Pipeline,
		&run.TriggerSource,
		&eventType,
		&run.State,
		&run.Outcome,
		&stagesJSON,
		&failedStage,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Stages = []domain.StageResult{}
	if stagesJSON != nil {
		if err := json.Unmarshal(stagesJSON, &run.Stages); err != nil {
			return nil, fmt.Errorf("unmarshal stages: %w", err)
		}
	}

	if eventType != nil {
		run.EventType = *eventType
	}
	if failedStage != nil {
		run.FailedStage = *failedStage
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

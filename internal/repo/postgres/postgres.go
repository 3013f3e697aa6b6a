package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.EndpointSource = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)

const (
	DefaultConfigTable = "api_health_configs"
	DefaultStateTable  = "api_health_states"
)

type Store struct {
	pool        *pgxpool.Pool
	log         *zap.Logger
	configTable string
	stateTable  string
}

func New(ctx context.Context, dsn, configTable, stateTable string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if configTable == "" {
		configTable = DefaultConfigTable
	}
	if stateTable == "" {
		stateTable = DefaultStateTable
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{
		pool:        pool,
		log:         log,
		configTable: pgx.Identifier{configTable}.Sanitize(),
		stateTable:  pgx.Identifier{stateTable}.Sanitize(),
	}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates both tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  api_id                 TEXT PRIMARY KEY,
  url                    TEXT NOT NULL,
  method                 TEXT NULL,
  expected_status_codes  INTEGER[] NULL,
  timeout_ms             INTEGER NULL,
  check_interval_seconds INTEGER NULL,
  notify_emails          TEXT[] NULL,
  enabled                BOOLEAN NULL
);

CREATE TABLE IF NOT EXISTS %s (
  api_id           TEXT PRIMARY KEY,
  last_state       TEXT NOT NULL,
  last_status_code INTEGER NULL,
  last_latency_ms  BIGINT NULL,
  last_checked_at  TIMESTAMPTZ NOT NULL,
  last_changed_at  TIMESTAMPTZ NULL,
  last_error       TEXT NULL
);`, s.configTable, s.stateTable)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- EndpointSource ----

func (s *Store) ListEndpoints(ctx context.Context) ([]domain.EndpointSpec, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT api_id, url, method, expected_status_codes, timeout_ms, check_interval_seconds, notify_emails, enabled
		   FROM %s
		  ORDER BY api_id`, s.configTable))
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.EndpointSpec
	for rows.Next() {
		var r repo.EndpointRow
		if err := rows.Scan(&r.ID, &r.URL, &r.Method, &r.ExpectedStatusCodes,
			&r.TimeoutMillis, &r.CheckIntervalSeconds, &r.NotifyTargets, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, r.Spec())
	}
	return out, rows.Err()
}

// PutEndpoint upserts one configuration row. Used for seeding.
func (s *Store) PutEndpoint(ctx context.Context, e domain.EndpointSpec) error {
	method := string(e.Method)
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (api_id, url, method, expected_status_codes, timeout_ms, check_interval_seconds, notify_emails, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (api_id) DO UPDATE SET
		   url = EXCLUDED.url,
		   method = EXCLUDED.method,
		   expected_status_codes = EXCLUDED.expected_status_codes,
		   timeout_ms = EXCLUDED.timeout_ms,
		   check_interval_seconds = EXCLUDED.check_interval_seconds,
		   notify_emails = EXCLUDED.notify_emails,
		   enabled = EXCLUDED.enabled`, s.configTable),
		e.ID, e.URL, &method, e.ExpectedStatusCodes.Sorted(), e.TimeoutMillis,
		e.CheckIntervalSeconds, e.NotifyTargets, e.Enabled,
	)
	if err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

// ---- StateStore ----

func (s *Store) Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error) {
	rec := domain.HealthRecord{EndpointID: endpointID}
	var state string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT last_state, last_status_code, last_latency_ms, last_checked_at, last_changed_at, last_error
		   FROM %s
		  WHERE api_id = $1`, s.stateTable), endpointID,
	).Scan(&state, &rec.StatusCode, &rec.LatencyMillis, &rec.CheckedAt, &rec.ChangedAt, &rec.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", endpointID, err)
	}
	rec.State = domain.State(state)
	rec.CheckedAt = rec.CheckedAt.UTC()
	if rec.ChangedAt.Valid {
		rec.ChangedAt.Time = rec.ChangedAt.Time.UTC()
	}
	return &rec, nil
}

func (s *Store) Put(ctx context.Context, rec *domain.HealthRecord) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (api_id, last_state, last_status_code, last_latency_ms, last_checked_at, last_changed_at, last_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (api_id) DO UPDATE SET
		   last_state = EXCLUDED.last_state,
		   last_status_code = EXCLUDED.last_status_code,
		   last_latency_ms = EXCLUDED.last_latency_ms,
		   last_checked_at = EXCLUDED.last_checked_at,
		   last_changed_at = EXCLUDED.last_changed_at,
		   last_error = EXCLUDED.last_error`, s.stateTable),
		rec.EndpointID, string(rec.State), rec.StatusCode, rec.LatencyMillis,
		rec.CheckedAt.UTC(), rec.ChangedAt, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("put state %s: %w", rec.EndpointID, err)
	}
	s.log.Debug("state_saved", zap.String("endpoint_id", rec.EndpointID), zap.String("state", string(rec.State)))
	return nil
}

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// per-run tables so reruns don't see each other's rows
	suffix := time.Now().UTC().UnixNano()
	store, err := New(ctx, dsn,
		fmt.Sprintf("cfg_test_%d", suffix), fmt.Sprintf("state_test_%d", suffix), zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+store.configTable+", "+store.stateTable)
		store.Close()
	})
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestPostgresStore_Endpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := domain.NewEndpointSpec("users-api", "https://example.com/health")
	e.ExpectedStatusCodes = domain.NewStatusCodeSet(200, 204)
	e.NotifyTargets = []string{"ops@example.com"}
	if err := store.PutEndpoint(ctx, e); err != nil {
		t.Fatalf("PutEndpoint: %v", err)
	}
	// a row with only the required columns gets defaults
	if _, err := store.pool.Exec(ctx, "INSERT INTO "+store.configTable+" (api_id, url) VALUES ('bare', 'https://bare.example.com')"); err != nil {
		t.Fatalf("insert bare row: %v", err)
	}

	list, err := store.ListEndpoints(ctx)
	if err != nil {
		t.Fatalf("ListEndpoints: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(list))
	}
	bare := list[0]
	if bare.ID != "bare" || !bare.Enabled || bare.TimeoutMillis != domain.DefaultTimeoutMillis {
		t.Fatalf("defaults not applied: %+v", bare)
	}
	if got := list[1].ExpectedStatusCodes.Sorted(); len(got) != 2 {
		t.Fatalf("expected two status codes, got %v", got)
	}
}

func TestPostgresStore_State(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Get(ctx, "missing")
	if err != nil || rec != nil {
		t.Fatalf("expected nil,nil for missing record, got %v, %v", rec, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	down := &domain.HealthRecord{
		EndpointID:    "users-api",
		State:         domain.StateDown,
		LatencyMillis: null.IntFrom(3000),
		CheckedAt:     now,
		ChangedAt:     null.TimeFrom(now),
		Error:         null.StringFrom("timeout"),
	}
	if err := store.Put(ctx, down); err != nil {
		t.Fatalf("Put: %v", err)
	}
	up := &domain.HealthRecord{
		EndpointID:    "users-api",
		State:         domain.StateUp,
		StatusCode:    null.IntFrom(200),
		LatencyMillis: null.IntFrom(40),
		CheckedAt:     now.Add(time.Minute),
		ChangedAt:     null.TimeFrom(now.Add(time.Minute)),
	}
	if err := store.Put(ctx, up); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "users-api")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.StateUp || got.StatusCode.Int64 != 200 || got.Error.Valid {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CheckedAt.Equal(up.CheckedAt) {
		t.Fatalf("checked_at mismatch: %v vs %v", got.CheckedAt, up.CheckedAt)
	}
}

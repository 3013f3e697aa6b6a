package repo

import (
	"fmt"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/apihealth/internal/domain"
)

// EndpointRow is the stored shape of an endpoint configuration. Optional attributes are
// pointers so that an omitted value falls back to its default instead of a zero.
type EndpointRow struct {
	ID                   string   `yaml:"api_id" json:"api_id" dynamodbav:"api_id"`
	URL                  string   `yaml:"url" json:"url" dynamodbav:"url"`
	Method               *string  `yaml:"method" json:"method" dynamodbav:"method"`
	ExpectedStatusCodes  []int    `yaml:"expected_status_codes" json:"expected_status_codes" dynamodbav:"expected_status_codes"`
	TimeoutMillis        *int     `yaml:"timeout_ms" json:"timeout_ms" dynamodbav:"timeout_ms"`
	CheckIntervalSeconds *int     `yaml:"check_interval_seconds" json:"check_interval_seconds" dynamodbav:"check_interval_seconds"`
	NotifyTargets        []string `yaml:"notify_emails" json:"notify_emails" dynamodbav:"notify_emails"`
	Enabled              *bool    `yaml:"enabled" json:"enabled" dynamodbav:"enabled"`
}

// Spec converts the row and applies defaults (GET, {200}, 3000 ms, 60 s, no targets, enabled).
func (r EndpointRow) Spec() domain.EndpointSpec {
	e := domain.EndpointSpec{
		ID:                  r.ID,
		URL:                 r.URL,
		ExpectedStatusCodes: domain.NewStatusCodeSet(r.ExpectedStatusCodes...),
		NotifyTargets:       r.NotifyTargets,
		Enabled:             true,
	}
	if r.Method != nil {
		e.Method = domain.Method(*r.Method)
	}
	if r.TimeoutMillis != nil {
		e.TimeoutMillis = *r.TimeoutMillis
	}
	if r.CheckIntervalSeconds != nil {
		e.CheckIntervalSeconds = *r.CheckIntervalSeconds
	}
	if r.Enabled != nil {
		e.Enabled = *r.Enabled
	}
	e.ApplyDefaults()
	return e
}

// StateRow is the stored shape of a HealthRecord, using the attribute names of the
// api_health_states table. Timestamps are ISO-8601 strings.
type StateRow struct {
	ID             string  `json:"api_id" dynamodbav:"api_id"`
	LastState      string  `json:"last_state" dynamodbav:"last_state"`
	LastStatusCode *int64  `json:"last_status_code" dynamodbav:"last_status_code"`
	LastLatencyMS  *int64  `json:"last_latency_ms" dynamodbav:"last_latency_ms"`
	LastCheckedAt  string  `json:"last_checked_at" dynamodbav:"last_checked_at"`
	LastChangedAt  *string `json:"last_changed_at" dynamodbav:"last_changed_at"`
	LastError      *string `json:"last_error" dynamodbav:"last_error"`
}

const timeLayout = time.RFC3339Nano

func NewStateRow(rec *domain.HealthRecord) StateRow {
	row := StateRow{
		ID:             rec.EndpointID,
		LastState:      string(rec.State),
		LastStatusCode: rec.StatusCode.Ptr(),
		LastLatencyMS:  rec.LatencyMillis.Ptr(),
		LastCheckedAt:  rec.CheckedAt.UTC().Format(timeLayout),
		LastError:      rec.Error.Ptr(),
	}
	if rec.ChangedAt.Valid {
		s := rec.ChangedAt.Time.UTC().Format(timeLayout)
		row.LastChangedAt = &s
	}
	return row
}

func (r StateRow) Record() (*domain.HealthRecord, error) {
	checked, err := time.Parse(timeLayout, r.LastCheckedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_checked_at for %s: %w", r.ID, err)
	}
	rec := &domain.HealthRecord{
		EndpointID:    r.ID,
		State:         domain.State(r.LastState),
		StatusCode:    null.IntFromPtr(r.LastStatusCode),
		LatencyMillis: null.IntFromPtr(r.LastLatencyMS),
		CheckedAt:     checked.UTC(),
		Error:         null.StringFromPtr(r.LastError),
	}
	if r.LastChangedAt != nil {
		changed, err := time.Parse(timeLayout, *r.LastChangedAt)
		if err != nil {
			return nil, fmt.Errorf("parse last_changed_at for %s: %w", r.ID, err)
		}
		rec.ChangedAt = null.TimeFrom(changed.UTC())
	}
	return rec, nil
}

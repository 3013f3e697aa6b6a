package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/notify"
)

const subjectPrefix = "[API Health]"

func alertSubject(id string, previous *domain.HealthRecord, state domain.State) string {
	if previous == nil {
		return fmt.Sprintf("%s %s is %s", subjectPrefix, id, state)
	}
	return fmt.Sprintf("%s %s changed from %s to %s", subjectPrefix, id, previous.State, state)
}

// buildAlert renders the change notification. checkedAt is the same instant that gets persisted.
func buildAlert(spec domain.EndpointSpec, previous *domain.HealthRecord, out domain.ProbeOutcome,
	checkedAt time.Time, environment string) notify.Message {
	prev := "UNKNOWN"
	if previous != nil {
		prev = string(previous.State)
	}

	lines := []string{
		"API ID: " + spec.ID,
		"URL: " + spec.URL,
		"Previous state: " + prev,
		"Current state: " + string(out.State),
	}
	if out.StatusCode.Valid {
		lines = append(lines, fmt.Sprintf("HTTP status code: %d", out.StatusCode.Int64))
	}
	if out.LatencyMillis.Valid {
		lines = append(lines, fmt.Sprintf("Latency (ms): %d", out.LatencyMillis.Int64))
	}
	if out.Error.Valid && out.Error.String != "" {
		lines = append(lines, "Error: "+out.Error.String)
	}
	lines = append(lines, "Checked at (UTC): "+checkedAt.UTC().Format(time.RFC3339))
	if environment != "" {
		lines = append(lines, "Environment: "+environment)
	}
	if len(spec.NotifyTargets) > 0 {
		lines = append(lines, "Notify targets: "+strings.Join(spec.NotifyTargets, ", "))
	}

	return notify.Message{
		Subject:    alertSubject(spec.ID, previous, out.State),
		Body:       strings.Join(lines, "\n"),
		EndpointID: spec.ID,
		State:      out.State,
		Targets:    spec.NotifyTargets,
	}
}

// nextRecord is the record to persist after a probe. ChangedAt moves only on a change;
// an old record without one falls back to checkedAt.
func nextRecord(id string, previous *domain.HealthRecord, out domain.ProbeOutcome, checkedAt time.Time) *domain.HealthRecord {
	rec := &domain.HealthRecord{
		EndpointID:    id,
		State:         out.State,
		StatusCode:    out.StatusCode,
		LatencyMillis: out.LatencyMillis,
		CheckedAt:     checkedAt,
		Error:         out.Error,
	}
	switch {
	case stateChanged(previous, out.State):
		rec.ChangedAt.SetValid(checkedAt)
	case previous.ChangedAt.Valid:
		rec.ChangedAt = previous.ChangedAt
	default:
		rec.ChangedAt.SetValid(checkedAt)
	}
	return rec
}

func stateChanged(previous *domain.HealthRecord, state domain.State) bool {
	return previous == nil || previous.State != state
}

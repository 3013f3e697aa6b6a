package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

type State string

const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// Method is the HTTP method used to probe an endpoint. Only GET and HEAD exist.
type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

// ParseMethod normalizes a configured method. Anything other than HEAD becomes GET.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), string(MethodHead)) {
		return MethodHead
	}
	return MethodGet
}

const (
	DefaultStatusCode           = 200
	DefaultTimeoutMillis        = 3000
	DefaultCheckIntervalSeconds = 60
)

// StatusCodeSet holds the response codes considered healthy.
type StatusCodeSet map[int]struct{}

func NewStatusCodeSet(codes ...int) StatusCodeSet {
	s := make(StatusCodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s StatusCodeSet) Contains(code int) bool {
	_, ok := s[code]
	return ok
}

// Sorted returns the codes in ascending order.
func (s StatusCodeSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func (s StatusCodeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StatusCodeSet) UnmarshalJSON(b []byte) error {
	var codes []int
	if err := json.Unmarshal(b, &codes); err != nil {
		return err
	}
	*s = NewStatusCodeSet(codes...)
	return nil
}

// EndpointSpec is one monitored target.
type EndpointSpec struct {
	ID                   string        `json:"id" validate:"required"`
	URL                  string        `json:"url" validate:"required"`
	Method               Method        `json:"method" validate:"oneof=GET HEAD"`
	ExpectedStatusCodes  StatusCodeSet `json:"expected_status_codes" validate:"min=1"`
	TimeoutMillis        int           `json:"timeout_ms" validate:"gt=0"`
	CheckIntervalSeconds int           `json:"check_interval_seconds" validate:"gte=0"`
	NotifyTargets        []string      `json:"notify_targets"`
	Enabled              bool          `json:"enabled"`
}

// NewEndpointSpec returns an enabled spec with every default filled in.
func NewEndpointSpec(id, url string) EndpointSpec {
	e := EndpointSpec{ID: id, URL: url, Enabled: true}
	e.ApplyDefaults()
	return e
}

// ApplyDefaults fills zero-valued fields. Enabled is left alone since false is meaningful;
// adapters decide its default when the source omits it.
func (e *EndpointSpec) ApplyDefaults() {
	e.Method = ParseMethod(string(e.Method))
	if len(e.ExpectedStatusCodes) == 0 {
		e.ExpectedStatusCodes = NewStatusCodeSet(DefaultStatusCode)
	}
	if e.TimeoutMillis <= 0 {
		e.TimeoutMillis = DefaultTimeoutMillis
	}
	if e.CheckIntervalSeconds <= 0 {
		e.CheckIntervalSeconds = DefaultCheckIntervalSeconds
	}
	if e.NotifyTargets == nil {
		e.NotifyTargets = []string{}
	}
}

func (e EndpointSpec) Timeout() time.Duration {
	return time.Duration(e.TimeoutMillis) * time.Millisecond
}

// HealthRecord is the last known status of one endpoint.
type HealthRecord struct {
	EndpointID    string      `json:"endpoint_id"`
	State         State       `json:"state"`
	StatusCode    null.Int    `json:"status_code"`
	LatencyMillis null.Int    `json:"latency_ms"`
	CheckedAt     time.Time   `json:"checked_at"`
	ChangedAt     null.Time   `json:"changed_at"`
	Error         null.String `json:"error"`
}

// ProbeOutcome is the transient result of one probe.
type ProbeOutcome struct {
	State         State
	StatusCode    null.Int
	LatencyMillis null.Int
	Error         null.String
}

// DisabledOutcome is reported for endpoints that are switched off.
func DisabledOutcome() ProbeOutcome {
	return ProbeOutcome{State: StateUp}
}

// FailedOutcome is a transport-level failure: no response, elapsed time, the error text.
func FailedOutcome(latencyMillis int64, msg string) ProbeOutcome {
	return ProbeOutcome{
		State:         StateDown,
		LatencyMillis: null.IntFrom(latencyMillis),
		Error:         null.StringFrom(msg),
	}
}

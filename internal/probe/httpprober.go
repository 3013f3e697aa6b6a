package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/guregu/null/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/domain"
)

// maxDrain bounds how much of a response body is read before closing it.
const maxDrain = 64 << 10

type HTTPProber struct {
	Client      *http.Client
	Logger      *zap.Logger
	UserAgent   string
	DiagnoseDNS bool
	// Resolver is used for failure diagnostics; nil means the system resolver.
	Resolver Resolver
}

func NewHTTPProber(logger *zap.Logger, userAgent string, diagnoseDNS bool) *HTTPProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProber{
		// no client-wide timeout; each probe carries its own deadline
		Client:      &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Logger:      logger,
		UserAgent:   userAgent,
		DiagnoseDNS: diagnoseDNS,
	}
}

func (h *HTTPProber) Probe(ctx context.Context, spec domain.EndpointSpec) domain.ProbeOutcome {
	if !spec.Enabled {
		return domain.DisabledOutcome()
	}

	timeout := spec.Timeout()
	if timeout <= 0 {
		timeout = domain.DefaultTimeoutMillis * time.Millisecond
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := domain.ParseMethod(string(spec.Method))

	start := time.Now()
	req, err := http.NewRequestWithContext(cctx, string(method), spec.URL, http.NoBody)
	if err != nil {
		return domain.FailedOutcome(sinceMillis(start), err.Error())
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	latency := sinceMillis(start)
	if err != nil {
		if h.DiagnoseDNS {
			// off the probe's deadline; bounded by dnsTimeout
			go h.diagnose(context.WithoutCancel(ctx), spec)
		}
		return domain.FailedOutcome(latency, err.Error())
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()

	out := domain.ProbeOutcome{
		State:         domain.StateUp,
		StatusCode:    null.IntFrom(int64(resp.StatusCode)),
		LatencyMillis: null.IntFrom(latency),
	}
	if !spec.ExpectedStatusCodes.Contains(resp.StatusCode) {
		out.State = domain.StateDown
		out.Error = null.StringFrom(fmt.Sprintf("Unexpected status code %d", resp.StatusCode))
	}
	return out
}

// diagnose logs a DNS classification for a failed probe. It never affects the outcome
// and is bounded by dnsTimeout.
func (h *HTTPProber) diagnose(ctx context.Context, spec domain.EndpointSpec) {
	dctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	r := h.Resolver
	if r == nil {
		r = resolver
	}
	dns := checkDNS(dctx, r, extractHost(spec.URL))
	h.Logger.Info("probe_dns_check",
		zap.String("endpoint_id", spec.ID),
		zap.String("domain", dns.Domain),
		zap.String("class", dns.Class),
		zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
}

func sinceMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

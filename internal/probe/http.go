package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"uptimebot/internal/domain"
)

// StatusRange is the inclusive range of response codes counted as up.
type StatusRange struct {
	Min, Max int
}

func (r StatusRange) Accepts(code int) bool {
	return code >= r.Min && code <= r.Max
}

// errTooManyRedirects marks a redirect chain past the configured cap.
var errTooManyRedirects = errors.New("too many redirects")

// HTTPProber issues one GET per probe. Redirects are followed up to
// MaxRedirects; anything past that is classified as a redirect loop.
type HTTPProber struct {
	client *http.Client
	accept StatusRange
}

func NewHTTPProber(timeout time.Duration, maxRedirects int, accept StatusRange) *HTTPProber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		accept: accept,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) domain.ProbeOutcome {
	start := time.Now()
	out := domain.ProbeOutcome{CheckedAt: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		out.Latency = time.Since(start)
		out.Kind = domain.KindDNSFailure
		out.Reason = err.Error()
		return out
	}

	resp, err := p.client.Do(req)
	out.Latency = time.Since(start)
	if err != nil {
		out.Kind = classify(err)
		out.Reason = err.Error()
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	if p.accept.Accepts(resp.StatusCode) {
		out.Success = true
		out.Kind = domain.KindOK
		out.Reason = resp.Status
		return out
	}
	out.Kind = domain.KindBadStatus
	out.Reason = fmt.Sprintf("unexpected status %s", resp.Status)
	return out
}

// classify maps a transport error onto the failure taxonomy.
func classify(err error) domain.FailureKind {
	if errors.Is(err, errTooManyRedirects) {
		return domain.KindRedirectLoop
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.KindDNSFailure
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.KindConnectionRefused
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.KindTimeout
	}
	// url.Error wrapping something we don't recognize; treat as refused
	// connection level trouble rather than inventing a new kind.
	return domain.KindConnectionRefused
}

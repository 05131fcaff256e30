package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aretw0/ferry/internal/logging"
	"github.com/aretw0/ferry/pkg/domain"
)

// OutcomeKind classifies a performed visit.
type OutcomeKind int

const (
	// Success carries a page to commit. Validation payloads land here too.
	Success OutcomeKind = iota
	// VersionMismatch means the page must be fetched by a full navigation to Location.
	VersionMismatch
	// Failed carries the terminal error in Err.
	Failed
	// Cancelled means the request was aborted before a response was classified.
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case VersionMismatch:
		return "version_mismatch"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome is the classified result of one request.
type Outcome struct {
	Kind     OutcomeKind
	Page     *domain.Page
	Location string // VersionMismatch: where the full navigation goes
	Status   int
	Err      error
}

// PerformState is the engine state a request is built from.
type PerformState struct {
	// Version is the last-known asset version. Zero means none is sent and
	// any returned version is accepted.
	Version domain.Version
	// Component is the current component, sent with partial reloads.
	Component string
	// OnProgress receives upload and download ticks. Optional.
	OnProgress func(domain.Progress)
}

// Client performs protocol visits against a Page Source.
// Starting a new Perform aborts the one still in flight.
type Client struct {
	http   *http.Client
	base   *url.URL
	logger *slog.Logger

	mu       sync.Mutex
	inflight context.CancelFunc
	seq      uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. Redirects are followed by the client's policy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL resolves relative visit urls against base.
func WithBaseURL(base *url.URL) Option {
	return func(c *Client) {
		c.base = base
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base, or nil.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Abort cancels the in-flight request, if any.
func (c *Client) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
}

// Perform sends req and classifies the response. It never returns nil.
func (c *Client) Perform(ctx context.Context, req domain.VisitRequest, st PerformState) *Outcome {
	req, err := req.Normalize()
	if err != nil {
		return &Outcome{Kind: Failed, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.inflight != nil {
		c.inflight()
	}
	c.seq++
	mine := c.seq
	c.inflight = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.seq == mine {
			c.inflight = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	httpReq, err := c.buildRequest(ctx, req, st)
	if err != nil {
		return &Outcome{Kind: Failed, Err: err}
	}

	c.logger.Debug("Issuing visit request", "method", req.Method, "url", httpReq.URL.String())
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return &Outcome{Kind: Cancelled, Err: ctx.Err()}
		}
		return &Outcome{Kind: Failed, Err: fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)}
	}
	defer resp.Body.Close()

	out := c.classify(ctx, req, st, resp)
	c.logger.Debug("Visit response classified", "status", resp.StatusCode, "outcome", out.Kind.String())
	return out
}

func (c *Client) classify(ctx context.Context, req domain.VisitRequest, st PerformState, resp *http.Response) *Outcome {
	status := resp.StatusCode

	if status == http.StatusConflict {
		if loc := resp.Header.Get(HeaderLocation); loc != "" {
			return &Outcome{Kind: VersionMismatch, Location: loc, Status: status}
		}
	}

	var body io.Reader = io.LimitReader(resp.Body, maxResponseBytes)
	body = newProgressReader(body, resp.ContentLength, false, st.OnProgress)
	data, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return &Outcome{Kind: Cancelled, Status: status, Err: ctx.Err()}
		}
		return &Outcome{Kind: Failed, Status: status, Err: fmt.Errorf("%w: reading body: %v", domain.ErrNetworkFailure, err)}
	}

	protocolResponse := resp.Header.Get(HeaderMarker) != ""
	if !looksLikeJSON(resp.Header.Get("Content-Type"), data) {
		if protocolResponse && isSuccess(status) {
			return &Outcome{Kind: Failed, Status: status, Err: fmt.Errorf("%w: response is not JSON", domain.ErrMalformedResponse)}
		}
		return &Outcome{Kind: Failed, Status: status, Err: fmt.Errorf("%w: status %d without a page", domain.ErrNetworkFailure, status)}
	}

	page, err := domain.ParsePage(data)
	if err != nil {
		if protocolResponse || isSuccess(status) {
			return &Outcome{Kind: Failed, Status: status, Err: err}
		}
		return &Outcome{Kind: Failed, Status: status, Err: fmt.Errorf("%w: status %d without a page", domain.ErrNetworkFailure, status)}
	}

	final := resp.Request.URL
	if !st.Version.IsZero() && !page.Version().Equal(st.Version) {
		return &Outcome{Kind: VersionMismatch, Location: c.display(final), Status: status, Page: page}
	}

	if page.URL() == "" {
		page = page.WithURL(c.display(final))
	}
	if frag := fragmentOf(req.URL); frag != "" && !strings.Contains(page.URL(), "#") && sameTarget(req, final) {
		page = page.WithURL(page.URL() + "#" + frag)
	}
	return &Outcome{Kind: Success, Page: page, Status: status}
}

// display renders u relative to the base when they share a host.
func (c *Client) display(u *url.URL) string {
	if c.base != nil && strings.EqualFold(c.base.Host, u.Host) && c.base.Scheme == u.Scheme {
		return u.RequestURI()
	}
	return u.String()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func looksLikeJSON(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func fragmentOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Fragment
}

// sameTarget reports whether the response answers the visited path, not a redirect elsewhere.
func sameTarget(req domain.VisitRequest, final *url.URL) bool {
	u, err := url.Parse(req.URL)
	if err != nil {
		return false
	}
	return u.Path == "" || u.Path == final.Path
}

// IsCancellation reports whether err stems from an aborted request.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

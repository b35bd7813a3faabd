// Package crm talks to the amoCRM v4 REST API: lead status lookup and
// note posting.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-webhook/pkg/logger"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultStatusCacheTTL = 10 * time.Minute

	apiPrefix = "/api/v4"
)

var (
	// ErrUnexpectedStatus is matched by every *StatusError.
	ErrUnexpectedStatus = errors.New("crm: unexpected status")
	ErrNoDomain         = errors.New("crm: no domain")
	// ErrUntrustedDomain means the event named a host outside the trusted
	// set and no base URL was configured to fall back to.
	ErrUntrustedDomain = errors.New("crm: untrusted domain")
	ErrMalformed       = errors.New("crm: malformed response")
)

// StatusError is a non-2xx answer from the CRM.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm: %s %s: status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

type Config struct {
	// BaseURL is used when a call has no domain of its own, or names one
	// that is not trusted.
	BaseURL     string
	AccessToken string
	// AllowedDomainSuffixes lists the hosts (and their subdomains) that an
	// event may direct requests to, e.g. "amocrm.ru". The BaseURL host is
	// always allowed.
	AllowedDomainSuffixes []string
	Timeout               time.Duration
	// StatusCacheTTL bounds how long pipeline status names are reused.
	StatusCacheTTL time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	allowed []string
	http    *http.Client
	// statuses caches "domain|pipeline|status" -> status name.
	statuses *cache.Cache
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = DefaultStatusCacheTTL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	var allowed []string
	for _, suffix := range cfg.AllowedDomainSuffixes {
		suffix = strings.ToLower(strings.Trim(strings.TrimSpace(suffix), "."))
		if suffix != "" {
			allowed = append(allowed, suffix)
		}
	}
	return &Client{
		baseURL:  withScheme(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")),
		token:    cfg.AccessToken,
		allowed:  allowed,
		http:     hc,
		statuses: cache.New(cfg.StatusCacheTTL, 2*cfg.StatusCacheTTL),
	}
}

type leadInfo struct {
	ID         int64 `json:"id"`
	PipelineID int64 `json:"pipeline_id"`
	StatusID   int64 `json:"status_id"`
}

type statusInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LeadStatus resolves the human-readable pipeline status of a lead.
// It costs two calls: the lead, then its pipeline status.
func (c *Client) LeadStatus(ctx context.Context, domain string, leadID int64) (string, error) {
	base, err := c.resolve(ctx, domain)
	if err != nil {
		return "", err
	}

	var lead leadInfo
	if err := c.do(ctx, http.MethodGet, base, fmt.Sprintf("/leads/%d", leadID), nil, &lead); err != nil {
		return "", err
	}
	if lead.PipelineID == 0 || lead.StatusID == 0 {
		return "", fmt.Errorf("%w: lead %d has no pipeline status", ErrMalformed, leadID)
	}

	key := fmt.Sprintf("%s|%d|%d", base, lead.PipelineID, lead.StatusID)
	if name, ok := c.statuses.Get(key); ok {
		return name.(string), nil
	}

	var st statusInfo
	path := fmt.Sprintf("/leads/pipelines/%d/statuses/%d", lead.PipelineID, lead.StatusID)
	if err := c.do(ctx, http.MethodGet, base, path, nil, &st); err != nil {
		return "", err
	}
	if st.Name == "" {
		return "", fmt.Errorf("%w: status %d has no name", ErrMalformed, lead.StatusID)
	}
	c.statuses.SetDefault(key, st.Name)
	return st.Name, nil
}

type note struct {
	NoteType string     `json:"note_type"`
	Params   noteParams `json:"params"`
}

type noteParams struct {
	Text string `json:"text"`
}

// PostNote attaches a common note to a lead.
func (c *Client) PostNote(ctx context.Context, domain string, leadID int64, text string) error {
	base, err := c.resolve(ctx, domain)
	if err != nil {
		return err
	}
	body := []note{{NoteType: "common", Params: noteParams{Text: text}}}
	return c.do(ctx, http.MethodPost, base, fmt.Sprintf("/leads/%d/notes", leadID), body, nil)
}

// resolve picks the API base for a request. The access token goes wherever
// the base points, so a domain taken from an event is only used when its
// host is the BaseURL host or falls under an allowed suffix over https.
func (c *Client) resolve(ctx context.Context, domain string) (string, error) {
	d := strings.TrimSpace(domain)
	if d == "" {
		return c.fallback()
	}

	u, err := url.Parse(withScheme(d))
	if err != nil || u.Hostname() == "" || u.User != nil {
		logger.From(ctx).Warn("crm domain unusable, using base url", "domain", d)
		return c.fallback()
	}
	host := strings.ToLower(u.Hostname())

	if base, err := url.Parse(c.baseURL); err == nil && c.baseURL != "" && strings.EqualFold(base.Hostname(), host) {
		return c.baseURL, nil
	}
	if u.Scheme == "https" && c.trusted(host) {
		return "https://" + u.Host, nil
	}

	logger.From(ctx).Warn("crm domain not trusted, using base url", "domain", u.Host)
	if c.baseURL == "" {
		return "", ErrUntrustedDomain
	}
	return c.baseURL, nil
}

func (c *Client) trusted(host string) bool {
	for _, suffix := range c.allowed {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func (c *Client) fallback() (string, error) {
	if c.baseURL == "" {
		return "", ErrNoDomain
	}
	return c.baseURL, nil
}

func withScheme(d string) string {
	if d != "" && !strings.Contains(d, "://") {
		return "https://" + d
	}
	return d
}

func (c *Client) do(ctx context.Context, method, base, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("crm: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("crm: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.From(ctx).Debug("crm request",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return nil
}

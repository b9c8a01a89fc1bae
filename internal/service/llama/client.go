package llama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	"YieldGuard/internal/service/breaker"
	"YieldGuard/internal/service/ratelimit"
	xhttp "YieldGuard/pkg/http"
	"YieldGuard/pkg/logger"
	"YieldGuard/pkg/util"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultBaseURL      = "https://yields.llama.fi"
	defaultProtocolsURL = "https://api.llama.fi"
	defaultUserAgent    = "yieldguard/1.0"
	defaultTimeout      = 10 * time.Second
)

// Option configures Client.
type Option func(*Client)

// Client fetches yield pool data from a DeFiLlama-compatible yields API.
// Requests pass the per-host rate limiter and circuit breaker; transient
// failures and 429/5xx responses are retried with exponential backoff.
type Client struct {
	baseURL      string
	mirrorURL    string
	protocolsURL string
	userAgent    string
	timeout      time.Duration

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	http     *xhttp.Client
	limiter  *ratelimit.Limiter
	breakers *breaker.Registry
	log      *logger.Logger
}

var _ drepo.MarketSource = (*Client)(nil)

// New creates a yields API client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		protocolsURL: defaultProtocolsURL,
		userAgent:    defaultUserAgent,
		timeout:      defaultTimeout,
		retryMax:     3,
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 8 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retryMax
	rc.RetryWaitMin = c.retryWaitMin
	rc.RetryWaitMax = c.retryWaitMax
	rc.HTTPClient.Timeout = c.timeout
	rc.Logger = nil
	// Exhausted retries must hand the final response back so status codes
	// can be mapped, not swallowed into a generic error.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.http = xhttp.NewClient(xhttp.WithHTTPClient(rc.StandardClient()))
	return c
}

// WithBaseURL overrides the yields API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMirrorURL configures the mirror base URL used by the mirror strategy.
func WithMirrorURL(u string) Option {
	return func(c *Client) {
		c.mirrorURL = strings.TrimRight(u, "/")
	}
}

// WithProtocolsURL overrides the protocol listing base URL.
func WithProtocolsURL(u string) Option {
	return func(c *Client) {
		c.protocolsURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry configures retry count and backoff window.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		if retryMax >= 0 {
			c.retryMax = retryMax
		}
		if waitMin > 0 {
			c.retryWaitMin = waitMin
		}
		if waitMax > 0 {
			c.retryWaitMax = waitMax
		}
	}
}

// WithRateLimiter attaches a per-host rate limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBreakers attaches a per-host circuit breaker registry.
func WithBreakers(r *breaker.Registry) Option {
	return func(c *Client) {
		c.breakers = r
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

type poolsEnvelope struct {
	Status string    `json:"status"`
	Data   []poolRow `json:"data"`
}

// poolRow mirrors the loosely-typed upstream schema. Required fields are
// pointers so absence can be told apart from zero values.
type poolRow struct {
	Pool       *string  `json:"pool"`
	Chain      *string  `json:"chain"`
	Project    *string  `json:"project"`
	Symbol     *string  `json:"symbol"`
	TVLUsd     *float64 `json:"tvlUsd"`
	APY        *float64 `json:"apy"`
	APYBase    *float64 `json:"apyBase"`
	APYReward  *float64 `json:"apyReward"`
	Stablecoin bool     `json:"stablecoin"`
	ILRisk     string   `json:"ilRisk"`
	Exposure   string   `json:"exposure"`
}

func (r poolRow) toRecord(observedAt time.Time) (models.PoolRecord, bool) {
	if r.Pool == nil || *r.Pool == "" ||
		r.Chain == nil || *r.Chain == "" ||
		r.Project == nil || *r.Project == "" ||
		r.Symbol == nil || *r.Symbol == "" {
		return models.PoolRecord{}, false
	}
	if r.TVLUsd == nil || !saneNumber(*r.TVLUsd) || *r.TVLUsd < 0 {
		return models.PoolRecord{}, false
	}

	rec := models.PoolRecord{
		PoolID:     *r.Pool,
		Chain:      *r.Chain,
		Project:    *r.Project,
		Symbol:     *r.Symbol,
		TVLUsd:     *r.TVLUsd,
		Stablecoin: r.Stablecoin,
		ILRisk:     r.ILRisk,
		Exposure:   r.Exposure,
		ObservedAt: observedAt,
	}
	// Missing APY means the upstream has no estimate yet; treat as zero and
	// let the quality validator grade it. Non-finite values are garbage.
	if r.APY != nil {
		if !saneNumber(*r.APY) {
			return models.PoolRecord{}, false
		}
		rec.APY = *r.APY
	}
	if r.APYBase != nil && saneNumber(*r.APYBase) {
		rec.APYBase = *r.APYBase
	}
	if r.APYReward != nil && saneNumber(*r.APYReward) {
		rec.APYReward = *r.APYReward
	}
	return rec, true
}

type chartEnvelope struct {
	Status string     `json:"status"`
	Data   []chartRow `json:"data"`
}

type chartRow struct {
	Timestamp *string  `json:"timestamp"`
	TVLUsd    *float64 `json:"tvlUsd"`
	APY       *float64 `json:"apy"`
}

func (r chartRow) toPoint() (models.HistoricalPoint, bool) {
	if r.Timestamp == nil || r.TVLUsd == nil || !saneNumber(*r.TVLUsd) || *r.TVLUsd < 0 {
		return models.HistoricalPoint{}, false
	}
	ts, ok := util.ParseTime(*r.Timestamp)
	if !ok {
		return models.HistoricalPoint{}, false
	}

	p := models.HistoricalPoint{Date: ts, TVLUsd: *r.TVLUsd}
	if r.APY != nil && saneNumber(*r.APY) {
		p.APY = *r.APY
	}
	return p, true
}

type protocolRow struct {
	Name   *string  `json:"name"`
	Slug   *string  `json:"slug"`
	Chains []string `json:"chains"`
	TVL    *float64 `json:"tvl"`
}

// Pools fetches the pool listing with server-side chain/project parameters
// and applies the remaining filters client-side.
func (c *Client) Pools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	params := map[string][]string{}
	if q.Chain != "" {
		params["chain"] = []string{q.Chain}
	}
	if q.Project != "" {
		params["project"] = []string{q.Project}
	}

	records, err := c.fetchPools(ctx, c.baseURL+"/pools", params)
	if err != nil {
		return nil, err
	}
	return Filter(records, q), nil
}

// MirrorPools fetches the pool listing from the configured mirror and
// filters client-side.
func (c *Client) MirrorPools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	if c.mirrorURL == "" {
		return nil, fmt.Errorf("mirror url not configured")
	}

	records, err := c.fetchPools(ctx, c.mirrorURL+"/pools", nil)
	if err != nil {
		return nil, err
	}
	return Filter(records, q), nil
}

// AllPools fetches the unfiltered pool listing.
func (c *Client) AllPools(ctx context.Context) ([]models.PoolRecord, error) {
	return c.fetchPools(ctx, c.baseURL+"/pools", nil)
}

// Protocols fetches the protocol directory used for project-scoped lookups.
func (c *Client) Protocols(ctx context.Context) ([]models.ProtocolRef, error) {
	var rows []protocolRow
	if err := c.getJSON(ctx, c.protocolsURL+"/protocols", nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch protocols: %w", err)
	}

	refs := make([]models.ProtocolRef, 0, len(rows))
	for _, row := range rows {
		if row.Slug == nil || *row.Slug == "" {
			continue
		}
		ref := models.ProtocolRef{Slug: *row.Slug, Chains: row.Chains}
		if row.Name != nil {
			ref.Name = *row.Name
		}
		if row.TVL != nil && saneNumber(*row.TVL) && *row.TVL > 0 {
			ref.TVLUsd = *row.TVL
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// History fetches the daily TVL/APY series for one pool. Rows with missing
// or non-finite values are dropped; duplicate days collapse to the latest
// observation.
func (c *Client) History(ctx context.Context, poolID string) (*models.HistoricalSeries, error) {
	if poolID == "" {
		return nil, models.InvalidInputError("pool_id", "pool id is required")
	}

	var envelope chartEnvelope
	endpoint := c.baseURL + "/chart/" + url.PathEscape(poolID)
	if err := c.getJSON(ctx, endpoint, nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", poolID, err)
	}

	points := make([]models.HistoricalPoint, 0, len(envelope.Data))
	dropped := 0
	for _, row := range envelope.Data {
		p, ok := row.toPoint()
		if !ok {
			dropped++
			continue
		}
		points = append(points, p)
	}
	if dropped > 0 && c.log != nil {
		c.log.Warn("dropped malformed history rows",
			logger.String("pool_id", poolID),
			logger.Int("dropped", dropped))
	}
	return models.NewHistoricalSeries(poolID, points), nil
}

func (c *Client) fetchPools(ctx context.Context, endpoint string, params map[string][]string) ([]models.PoolRecord, error) {
	var envelope poolsEnvelope
	if err := c.getJSON(ctx, endpoint, params, &envelope); err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}

	observedAt := time.Now().UTC()
	records := make([]models.PoolRecord, 0, len(envelope.Data))
	dropped := 0
	for _, row := range envelope.Data {
		rec, ok := row.toRecord(observedAt)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 && c.log != nil {
		c.log.Warn("dropped malformed pool records",
			logger.String("endpoint", endpoint),
			logger.Int("dropped", dropped))
	}
	return records, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string][]string, dest interface{}) error {
	host, err := hostOf(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	do := func() error {
		resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    endpoint,
			Headers: map[string]string{
				"User-Agent": c.userAgent,
				"Accept":     "application/json",
			},
			QueryParams: params,
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if d := retryAfter(resp); d > 0 && c.limiter != nil {
				c.limiter.Backoff(host, d)
			}
			return models.RateLimitedError(host)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	}

	if c.breakers != nil {
		return c.breakers.Do(host, do)
	}
	return do()
}

// Filter applies a pool query client-side.
func Filter(records []models.PoolRecord, q models.PoolQuery) []models.PoolRecord {
	if q.IsZero() {
		return records
	}

	out := make([]models.PoolRecord, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func saneNumber(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func hostOf(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

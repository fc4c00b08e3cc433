package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hupe1980/rewardsearch/codec"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/reward/alignment"
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("remote: unexpected status")

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// MaxRequests allowed in the half-open state. Default: 1.
	MaxRequests uint32

	// Interval clears the failure counts while closed. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open. Default: 30s.
	Timeout time.Duration

	// MinRequests before the failure ratio is considered. Default: 3.
	MinRequests uint32

	// FailureRatio at which the breaker opens. Default: 0.6.
	FailureRatio float64
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

type options struct {
	httpClient *http.Client
	codec      codec.Codec
	rc         *resource.Controller
	breaker    BreakerConfig
	logger     *slog.Logger
	apiKey     string
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithCodec sets the request/response codec. Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithResourceController applies rc's request-rate limit to every call.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithBreaker sets the circuit breaker configuration.
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *options) {
		o.breaker = cfg
	}
}

// WithLogger sets the logger for breaker state changes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// Request is the scoring request body.
type Request struct {
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
}

// Response is the scoring response body.
type Response struct {
	Scores []float64 `json:"scores"`
}

// Client is an HTTP ranker.
type Client struct {
	endpoint string
	http     *http.Client
	codec    codec.Codec
	rc       *resource.Controller
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
	apiKey   string
}

var _ alignment.Ranker = (*Client)(nil)

// New creates a client posting to endpoint.
func New(endpoint string, optFns ...Option) *Client {
	opts := options{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		codec:      codec.Default,
		breaker:    DefaultBreakerConfig(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Client{
		endpoint: endpoint,
		http:     opts.httpClient,
		codec:    opts.codec,
		rc:       opts.rc,
		logger:   opts.logger,
		apiKey:   opts.apiKey,
	}

	bc := opts.breaker
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ranker " + endpoint,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

// Rank scores particles against prompt.
func (c *Client) Rank(ctx context.Context, prompt string, particles *particle.Batch) ([]float64, error) {
	body, err := c.encode(prompt, particles)
	if err != nil {
		return nil, err
	}
	if err := c.rc.WaitRequest(ctx); err != nil {
		return nil, err
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	scores := out.([]float64)
	if len(scores) != particles.N {
		return nil, fmt.Errorf("remote: got %d scores for %d particles", len(scores), particles.N)
	}
	return scores, nil
}

func (c *Client) encode(prompt string, particles *particle.Batch) ([]byte, error) {
	req := Request{
		Prompt: prompt,
		Images: make([]string, particles.N),
	}
	var buf bytes.Buffer
	for i := 0; i < particles.N; i++ {
		img, err := reference.ToImage(particles, i)
		if err != nil {
			return nil, err
		}
		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode particle %d: %w", i, err)
		}
		req.Images[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return c.codec.Marshal(req)
}

func (c *Client) post(ctx context.Context, body []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(data))
	}

	var out Response
	if err := c.codec.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Scores, nil
}

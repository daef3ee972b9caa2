package gradeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

const (
	DefaultClientTimeout  = 30 * time.Second
	DefaultClientRetryMax = 3
)

// ClientConfig configures a grading API client
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMax        int
	ZstdCompression bool
}

// Client talks to a remote grading API
type Client struct {
	config      *ClientConfig
	restyClient *resty.Client
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

// APIError is returned when the server answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("grading API error %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the API at config.BaseURL. Requests are
// retried up to RetryMax times on connection errors and 5xx responses.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil || config.BaseURL == "" {
		return nil, fmt.Errorf("grading API base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.RetryMax < 0 {
		config.RetryMax = 0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = config.Timeout
	retryClient.Logger = retryLogger{}
	// hand the final 5xx response to resty so the error envelope is kept
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimSuffix(config.BaseURL, "/")).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Content-Type", "application/json")

	client := &Client{
		config:      config,
		restyClient: restyClient,
	}

	if config.ZstdCompression {
		restyClient.SetHeader("Accept-Encoding", "zstd")

		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		client.encoder = encoder

		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		client.decoder = decoder
	}

	log.Debug().
		Str("base_url", config.BaseURL).
		Int("retry_max", config.RetryMax).
		Str("timeout", config.Timeout.String()).
		Bool("zstd", config.ZstdCompression).
		Msg("grading API client initialized")

	return client, nil
}

// Close cleans up client resources
func (c *Client) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	resp, err := c.restyClient.R().SetContext(ctx).Get(HealthRoute)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if err := c.decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	var out EvaluateResponse
	if err := c.post(ctx, EvaluateRoute, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	var out ScoreResponse
	if err := c.post(ctx, ScoreRoute, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, route string, request, response any) error {
	body, err := sonic.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req := c.restyClient.R().SetContext(ctx)
	if c.encoder != nil {
		compressed := c.encoder.EncodeAll(body, nil)
		log.Trace().
			Str("route", route).
			Int("original_size", len(body)).
			Int("compressed_size", len(compressed)).
			Msg("Request body compressed")
		req.SetHeader("Content-Encoding", "zstd")
		body = compressed
	}

	resp, err := req.SetBody(body).Post(route)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return c.decode(resp, response)
}

// decode unwraps a StdResponse into response, turning transport and
// application errors into *APIError.
func (c *Client) decode(resp *resty.Response, response any) error {
	responseBody := resp.Body()
	if c.decoder != nil && resp.Header().Get("Content-Encoding") == "zstd" {
		decompressed, err := c.decoder.DecodeAll(responseBody, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress response: %w", err)
		}
		responseBody = decompressed
	}

	std := StdResponse[json.RawMessage]{}
	if err := sonic.Unmarshal(responseBody, &std); err != nil {
		if resp.IsError() {
			return &APIError{StatusCode: resp.StatusCode(), Message: string(responseBody)}
		}
		return fmt.Errorf("failed to unmarshal StdResponse: %w", err)
	}

	if std.Error != nil {
		return &APIError{StatusCode: resp.StatusCode(), Message: *std.Error}
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	}

	if err := sonic.Unmarshal(std.Body, response); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}

// MaskPayloadFromImage converts a loaded mask for transport.
func MaskPayloadFromImage(img scoring.IntensityImage) MaskPayload {
	height, width := img.Dims()
	rows := make([][]int, height)
	for y := range height {
		rows[y] = make([]int, width)
		for x := range width {
			rows[y][x] = int(img.Pixels.At(y, x))
		}
	}
	return MaskPayload{Name: img.Name, Pixels: rows}
}

// Result rebuilds an evaluation result from a response. PairScores is not
// transported and stays nil.
func (r *EvaluateResponse) Result() *scoring.EvaluationResult {
	result := &scoring.EvaluationResult{
		Candidates: make([]scoring.CandidateScore, len(r.Candidates)),
		Aggregate:  r.Aggregate,
	}
	for i, c := range r.Candidates {
		result.Candidates[i] = scoring.CandidateScore{
			Position:             i,
			Candidate:            c.Name,
			Score:                c.Score,
			BestReference:        c.BestReference,
			BestReferenceName:    c.BestReferenceName,
			ReferenceToCandidate: c.ReferenceToCandidate,
			CandidateToReference: c.CandidateToReference,
		}
	}
	return result
}

// retryLogger routes retryablehttp's leveled logs to zerolog.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...any) {
	log.Error().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Debug(msg string, keysAndValues ...any) {
	log.Trace().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Warn(msg string, keysAndValues ...any) {
	log.Warn().Fields(keysAndValues).Msg(msg)
}

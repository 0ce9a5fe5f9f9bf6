// Package http dispatches signed Cumulo API requests with retries. It owns
// request framing for both wire protocols, the retry loop and per-attempt
// re-signing. Response decoding beyond error envelopes belongs to the
// caller.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/internal/inflect"
	"github.com/cumulo-io/cumulo-client/internal/signing"
	"github.com/cumulo-io/cumulo-client/internal/wire"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

const (
	unknownErrorCode = "UnknownError"
	maxStatusMessage = 120
)

// Request is one API operation ready for dispatch.
type Request struct {
	// Service is the service identifier, e.g. "compute".
	Service string
	// Action is the remote operation name, e.g. "DescribeVolumes".
	Action string
	// Version is the service API version date.
	Version string
	// Params carries the operation parameters. May be nil.
	Params *cumulo.Params
	// Headers are extra headers merged into the dispatched request.
	Headers map[string]string
}

// Response is the raw outcome of a dispatched request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Attempts is the number of HTTP attempts the call consumed.
	Attempts int
}

// Client dispatches signed requests to one endpoint.
type Client struct {
	endpoint    *url.URL
	credentials *cumulo.Credentials
	protocol    cumulo.Protocol
	signer      signing.Signer
	parser      wire.Parser

	httpClient *http.Client
	policy     RetryPolicy
	timeout    time.Duration
	userAgent  string

	logger cumulo.Logger
	debug  bool
	clock  func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithProtocol selects the wire protocol. Defaults to the query protocol.
func WithProtocol(protocol cumulo.Protocol) Option {
	return func(c *Client) {
		c.protocol = protocol
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger cumulo.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug toggles request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig overrides the retry limits.
func WithRetryConfig(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.policy = RetryPolicy{Max: max, WaitMin: waitMin, WaitMax: waitMax}
	}
}

// WithHTTPTimeout sets the fallback timeout applied when the caller's
// context has no deadline.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithClock overrides the signing timestamp source. Tests use it to pin
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient creates a dispatching client for one endpoint.
func NewClient(endpoint string, credentials *cumulo.Credentials, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}

	client := &Client{
		endpoint:    parsed,
		credentials: credentials,
		protocol:    cumulo.ProtocolQuery,
		httpClient:  cleanhttp.DefaultPooledClient(),
		policy:      DefaultRetryPolicy(),
		timeout:     constants.DefaultHTTPTimeout,
		userAgent:   constants.DefaultUserAgent,
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.signer, err = signing.ForProtocol(client.protocol)
	if err != nil {
		return nil, err
	}

	client.parser, err = wire.ForProtocol(client.protocol)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// Parser returns the response parser matching the client's protocol.
func (c *Client) Parser() wire.Parser {
	return c.parser
}

// Do signs and dispatches one API call, retrying transient failures with
// exponential backoff. The returned response is non-nil whenever an HTTP
// exchange completed, including when err reports a remote API error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.credentials == nil {
		return nil, cumulo.ErrCredentialsRequired
	}

	if !c.credentials.Valid() {
		return nil, cumulo.ErrInvalidCredentials
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, prepare, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":  http.MethodPost,
			"url":     c.endpoint.String(),
			"service": req.Service,
			"action":  req.Action,
		})
	}

	var attempts int

	resp, err := c.newRetryClient(prepare, &attempts).Do(httpReq)
	if err != nil {
		return nil, &cumulo.RequestError{Action: req.Action, Attempts: attempts, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cumulo.RequestError{
			Action:   req.Action,
			Attempts: attempts,
			Err:      fmt.Errorf("reading response body: %w", err),
		}
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Attempts:   attempts,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":   resp.StatusCode,
			"bytes":    len(body),
			"action":   req.Action,
			"attempts": attempts,
		})
	}

	if apiErr := c.parser.DecodeError(resp.StatusCode, body); apiErr != nil {
		return response, &cumulo.RequestError{Action: req.Action, Attempts: attempts, Err: apiErr}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &cumulo.APIError{
			Code:       unknownErrorCode,
			Message:    statusMessage(resp.StatusCode, body),
			StatusCode: resp.StatusCode,
		}

		return response, &cumulo.RequestError{Action: req.Action, Attempts: attempts, Err: apiErr}
	}

	return response, nil
}

// newRetryClient builds the per-call retry loop. A fresh client per call
// keeps the prepare hook and attempt counter call-local while the pooled
// transport is shared.
func (c *Client) newRetryClient(prepare retryablehttp.PrepareRetry, attempts *int) *retryablehttp.Client {
	return &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryMax:     c.policy.Max,
		RetryWaitMin: c.policy.WaitMin,
		RetryWaitMax: c.policy.WaitMax,
		CheckRetry:   c.checkRetry,
		Backoff:      Backoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		PrepareRetry: prepare,
		RequestLogHook: func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
			*attempts = attempt + 1
		},
	}
}

// buildRequest frames req for the configured protocol and returns the
// dispatchable request plus the hook that re-signs retries.
func (c *Client) buildRequest(ctx context.Context, req *Request) (*retryablehttp.Request, retryablehttp.PrepareRetry, error) {
	if c.protocol == cumulo.ProtocolJSON {
		return c.buildJSONRequest(ctx, req)
	}

	return c.buildQueryRequest(ctx, req)
}

// buildQueryRequest frames a form-encoded query protocol call. Signing runs
// inside the body source, which the retry loop invokes before every attempt,
// so each attempt carries a fresh Timestamp and Signature.
func (c *Client) buildQueryRequest(ctx context.Context, req *Request) (*retryablehttp.Request, retryablehttp.PrepareRetry, error) {
	signReq := &signing.Request{
		Host:   c.endpoint.Host,
		Path:   c.endpoint.Path,
		Params: req.Params.QueryValues(),
	}

	signReq.Params.Set("Action", req.Action)
	signReq.Params.Set("Version", req.Version)

	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		if err := c.signer.Sign(signReq, c.credentials, c.clock()); err != nil {
			return nil, err
		}

		return strings.NewReader(signReq.Params.Encode()), nil
	})

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", constants.ContentTypeForm)
	httpReq.Header.Set("Accept", "text/xml")
	c.setCommonHeaders(httpReq, req)

	return httpReq, nil, nil
}

// buildJSONRequest frames a JSON protocol call. The body is fixed, so the
// first attempt is signed here and the returned hook re-signs the headers
// before each retry.
func (c *Client) buildJSONRequest(ctx context.Context, req *Request) (*retryablehttp.Request, retryablehttp.PrepareRetry, error) {
	payload, err := json.Marshal(req.Params.JSONMap())
	if err != nil {
		return nil, nil, fmt.Errorf("encoding request body: %w", err)
	}

	signReq := &signing.Request{
		Host:   c.endpoint.Host,
		Path:   c.endpoint.Path,
		Target: jsonTarget(req.Service, req.Version, req.Action),
		Body:   payload,
	}

	if err := c.signer.Sign(signReq, c.credentials, c.clock()); err != nil {
		return nil, nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), payload)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", constants.ContentTypeJSON)
	httpReq.Header.Set("Accept", constants.ContentTypeJSON)
	copyHeaders(httpReq.Header, signReq.Headers)
	c.setCommonHeaders(httpReq, req)

	prepare := func(retryReq *http.Request) error {
		if err := c.signer.Sign(signReq, c.credentials, c.clock()); err != nil {
			return err
		}

		copyHeaders(retryReq.Header, signReq.Headers)

		return nil
	}

	return httpReq, prepare, nil
}

func (c *Client) setCommonHeaders(httpReq *retryablehttp.Request, req *Request) {
	httpReq.Header.Set("User-Agent", c.userAgent)

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
}

// jsonTarget builds the X-Cumulo-Target value: the service name in
// PascalCase, the version date compacted, then the action.
func jsonTarget(service, version, action string) string {
	return inflect.ToRemote(service) + "_" + strings.ReplaceAll(version, "-", "") + "." + action
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		dst.Del(key)

		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// statusMessage summarizes a failure body that carried no error envelope.
func statusMessage(statusCode int, body []byte) string {
	message := strings.TrimSpace(string(body))
	if message == "" {
		return http.StatusText(statusCode)
	}

	if len(message) > maxStatusMessage {
		message = message[:maxStatusMessage]
	}

	return message
}

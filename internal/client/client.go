// Package client implements the Cumulo client engine: it wires the signed
// transport, wire codecs, interceptors and response cache together and hosts
// the per-service facades.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	http_internal "github.com/cumulo-io/cumulo-client/internal/http"
	"github.com/cumulo-io/cumulo-client/internal/wire"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// Client is the concrete cumulo.Client. All facade methods funnel through
// Call, so interceptors and caching apply uniformly.
type Client struct {
	config       *cumulo.Config
	computeHTTP  *http_internal.Client
	identityHTTP *http_internal.Client
	parser       wire.Parser
	cache        *cumulo.CacheManager
	interceptors *cumulo.InterceptorChain

	compute  *ComputeClient
	identity *IdentityClient
}

// New creates a client from config. Each service talks to the explicit
// config.Endpoint when one is set, otherwise to its region-derived endpoint.
func New(config *cumulo.Config) (*Client, error) {
	if config == nil {
		return nil, cumulo.ErrConfigRequired
	}

	if config.Endpoint == "" && config.Region == "" {
		return nil, cumulo.ErrEndpointRequired
	}

	opts := httpOptions(config)
	computeEndpoint := endpointFor(config, constants.ComputeService)

	computeHTTP, err := http_internal.NewClient(computeEndpoint, config.Credentials, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating compute transport: %w", err)
	}

	// Region-derived endpoints differ per service; an explicit endpoint is
	// shared, including its connection pool.
	identityHTTP := computeHTTP

	if identityEndpoint := endpointFor(config, constants.IdentityService); identityEndpoint != computeEndpoint {
		identityHTTP, err = http_internal.NewClient(identityEndpoint, config.Credentials, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating identity transport: %w", err)
		}
	}

	client := &Client{
		config:       config,
		computeHTTP:  computeHTTP,
		identityHTTP: identityHTTP,
		parser:       computeHTTP.Parser(),
		interceptors: interceptorChain(config),
	}

	if config.Cache != nil {
		backend, err := cumulo.NewCacheFromConfig(config.Cache)
		if err != nil {
			return nil, fmt.Errorf("configuring cache: %w", err)
		}

		client.cache = cumulo.NewCacheManager(backend, config.Cache.Policy)
	}

	client.compute = newComputeClient(client)
	client.identity = newIdentityClient(client)

	return client, nil
}

// Compute returns the compute service facade.
func (c *Client) Compute() cumulo.ComputeClient {
	return c.compute
}

// Identity returns the identity service facade.
func (c *Client) Identity() cumulo.IdentityClient {
	return c.identity
}

// Call dispatches one API action and decodes the response into an attribute
// tree. It is the generic escape hatch for actions the facades do not cover;
// the facades themselves route through it too.
func (c *Client) Call(ctx context.Context, service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	if action == "" {
		return nil, cumulo.ErrActionRequired
	}

	httpClient, version, err := c.serviceFor(service)
	if err != nil {
		return nil, err
	}

	interceptReq := &cumulo.Request{
		Service:  service,
		Action:   action,
		Headers:  http.Header{},
		Params:   params,
		Metadata: map[string]interface{}{},
	}

	if err := c.interceptors.ExecuteRequestInterceptors(ctx, interceptReq); err != nil {
		return nil, fmt.Errorf("request interceptor: %w", err)
	}

	cacheKey, cached := c.cachedTree(ctx, service, action, params)
	if cached != nil {
		return cached, nil
	}

	resp, err := httpClient.Do(ctx, &http_internal.Request{
		Service: service,
		Action:  action,
		Version: version,
		Params:  params,
		Headers: flattenHeaders(interceptReq.Headers),
	})

	interceptResp := &cumulo.Response{Error: err}
	if resp != nil {
		interceptResp.StatusCode = resp.StatusCode
		interceptResp.Headers = resp.Headers
		interceptResp.Body = resp.Body
	}

	if respErr := c.interceptors.ExecuteResponseInterceptors(ctx, interceptReq, interceptResp); respErr != nil {
		return nil, fmt.Errorf("response interceptor: %w", respErr)
	}

	if err != nil {
		return nil, err
	}

	tree, err := c.parser.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", action, err)
	}

	c.storeTree(ctx, cacheKey, action, resp, tree)

	return tree, nil
}

// serviceFor maps a service identifier to its transport and API version.
func (c *Client) serviceFor(service string) (*http_internal.Client, string, error) {
	switch service {
	case constants.ComputeService:
		return c.computeHTTP, constants.ComputeAPIVersion, nil
	case constants.IdentityService:
		return c.identityHTTP, constants.IdentityAPIVersion, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", cumulo.ErrUnknownService, service)
	}
}

// cachedTree consults the cache for actions the policy marks cacheable. It
// returns the computed key so a later store reuses it, and the decoded tree
// on a hit. Any cache or decode failure is treated as a miss.
func (c *Client) cachedTree(ctx context.Context, service, action string, params *cumulo.Params) (string, cumulo.AttributeTree) {
	if c.cache == nil || !c.cache.Policy().ShouldCache(action, http.StatusOK) {
		return "", nil
	}

	key := c.cache.GetCacheKey(service, action, flattenParams(params))

	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return key, nil
	}

	tree, err := c.parser.Decode(data)
	if err != nil {
		return key, nil
	}

	return key, tree
}

// storeTree caches the raw response body after a successful decode. Cached
// entries hold the wire bytes, so hits replay the same decode path as live
// responses.
func (c *Client) storeTree(ctx context.Context, key, action string, resp *http_internal.Response, tree cumulo.AttributeTree) {
	if c.cache == nil || key == "" {
		return
	}

	if !c.cache.Policy().ShouldCache(action, resp.StatusCode) {
		return
	}

	_ = c.cache.SetWithRequestID(ctx, key, resp.Body, tree.String("request_id"), c.cache.Policy().DefaultTTL)
}

// collection builds a lazy cursor over a list action. Every page request
// clones the caller's params before applying the continuation token, so a
// collection can be enumerated without mutating shared parameter sets.
func (c *Client) collection(service, action, listAttr string, params *cumulo.Params) *cumulo.Collection {
	return cumulo.NewCollection(func(ctx context.Context, token string) (*cumulo.Page, error) {
		pageParams := params.Clone()
		if token != "" {
			pageParams.Set("next_token", token)
		}

		tree, err := c.Call(ctx, service, action, pageParams)
		if err != nil {
			return nil, err
		}

		return &cumulo.Page{
			Items:     tree.Trees(listAttr),
			NextToken: tree.String("next_token"),
		}, nil
	})
}

// endpointFor resolves the base URL one service dispatches against.
func endpointFor(config *cumulo.Config, service string) string {
	if config.Endpoint != "" {
		return config.Endpoint
	}

	return fmt.Sprintf("https://%s.%s.%s", service, config.Region, constants.EndpointDomain)
}

// httpOptions translates config knobs into transport options, leaving the
// transport defaults in place for anything unset.
func httpOptions(config *cumulo.Config) []http_internal.Option {
	opts := []http_internal.Option{}

	if config.Protocol != "" {
		opts = append(opts, http_internal.WithProtocol(config.Protocol))
	}

	if config.Logger != nil {
		opts = append(opts, http_internal.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, http_internal.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, http_internal.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, http_internal.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		waitMin := constants.DefaultRetryWaitMin
		if config.RetryWaitMin > 0 {
			waitMin = config.RetryWaitMin
		}

		waitMax := constants.DefaultRetryWaitMax
		if config.RetryWaitMax > 0 {
			waitMax = config.RetryWaitMax
		}

		opts = append(opts, http_internal.WithRetryConfig(config.RetryMax, waitMin, waitMax))
	}

	return opts
}

// interceptorChain builds the chain from the config hook slices.
func interceptorChain(config *cumulo.Config) *cumulo.InterceptorChain {
	chain := cumulo.NewInterceptorChain()

	for _, interceptor := range config.RequestInterceptors {
		chain.AddRequestInterceptor(interceptor)
	}

	for _, interceptor := range config.ResponseInterceptors {
		chain.AddResponseInterceptor(interceptor)
	}

	return chain
}

// flattenParams renders params in remote form for cache keys, keeping the
// first value of any repeated key.
func flattenParams(params *cumulo.Params) map[string]string {
	values := params.QueryValues()
	flat := make(map[string]string, len(values))

	for key := range values {
		flat[key] = values.Get(key)
	}

	return flat
}

// flattenHeaders converts interceptor-added headers to the transport form.
func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}

	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}

	return flat
}

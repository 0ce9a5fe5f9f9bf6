package constants

import "time"

// Service identifiers and API versions.
const (
	// ComputeService is the service identifier for compute actions.
	ComputeService = "compute"

	// IdentityService is the service identifier for identity actions.
	IdentityService = "identity"

	// ComputeAPIVersion is the API version sent with compute actions.
	ComputeAPIVersion = "2024-06-15"

	// IdentityAPIVersion is the API version sent with identity actions.
	IdentityAPIVersion = "2023-10-01"

	// EndpointDomain is the public endpoint domain. Per-service endpoints
	// derive as "https://<service>.<region>.<domain>".
	EndpointDomain = "cumulo.dev"
)

// Signing constants.
const (
	// SignatureVersion is the query protocol signature version parameter.
	SignatureVersion = "2"

	// SignatureMethod is the query protocol signature method parameter.
	SignatureMethod = "HmacSHA256"

	// TimestampFormat is the ISO 8601 UTC layout used for signing timestamps.
	TimestampFormat = "2006-01-02T15:04:05Z"

	// AuthSchemePrefix is the Authorization scheme for JSON protocol signing.
	AuthSchemePrefix = "CUMULO3-HMAC-SHA256"

	// SignedHeaders lists the headers covered by JSON protocol signatures.
	SignedHeaders = "host;x-cumulo-date;x-cumulo-target"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// HTTP request framing.
const (
	// ClientVersion is the library version reported in the User-Agent.
	ClientVersion = "1.0.0"

	// DefaultUserAgent identifies this library in requests.
	DefaultUserAgent = "cumulo-client/" + ClientVersion

	// ContentTypeForm is the query protocol request content type.
	ContentTypeForm = "application/x-www-form-urlencoded; charset=utf-8"

	// ContentTypeJSON is the JSON protocol request content type.
	ContentTypeJSON = "application/json"
)

// Retry limits.
const (
	// DefaultRetryMax is the default number of additional attempts after the
	// first failure.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the base backoff unit between retries.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second

	// ExponentialBackoffBase is the base for exponential backoff.
	ExponentialBackoffBase = 2
)

// Concurrency and batching limits.
const (
	// DefaultConcurrencyLimit limits concurrent operations.
	DefaultConcurrencyLimit = 3

	// MaxWorkers is the default number of workers for concurrent operations.
	MaxWorkers = 10

	// BufferSize is the default buffer size for channels.
	BufferSize = 100

	// SmallBufferSize is used for smaller buffers.
	SmallBufferSize = 10
)

// Pagination limits.
const (
	// DefaultMaxResults is the default page size requested from list actions.
	DefaultMaxResults = 100

	// MaxPages is used to prevent runaway pagination in bulk helpers.
	MaxPages = 50
)

// Cache size and lifetime constants.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheSetTTL is the default TTL when setting cache values.
	DefaultCacheSetTTL = 10 * time.Minute

	// MaxCacheValueSize is the maximum size for cached values (1MB).
	MaxCacheValueSize = 1024 * 1024

	// DefaultCacheCleanupInterval is how often expired entries are swept.
	DefaultCacheCleanupInterval = time.Minute
)

// Circuit breaker constants.
const (
	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)

// State and status constants.
const (
	// StatusClosed indicates a closed circuit (requests flow).
	StatusClosed = "closed"

	// StatusOpen indicates an open circuit (requests rejected).
	StatusOpen = "open"

	// StatusHalfOpen indicates a half-open circuit (probing).
	StatusHalfOpen = "half-open"
)

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Output format constants.
const (
	// FormatTable for tabular output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

// UI and display constants.
const (
	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

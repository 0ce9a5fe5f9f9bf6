package cumulo

import (
	"context"
	"time"
)

// Protocol selects the wire encoding used for requests and responses.
type Protocol string

const (
	// ProtocolQuery sends form-encoded query requests and parses XML
	// responses. This is the default.
	ProtocolQuery Protocol = "query"

	// ProtocolJSON sends JSON requests with target headers and parses JSON
	// responses.
	ProtocolJSON Protocol = "json"
)

// Client provides access to the Cumulo API.
type Client interface {
	// Compute returns the compute service client (instances, volumes,
	// snapshots).
	Compute() ComputeClient

	// Identity returns the identity service client (users, groups, access
	// keys).
	Identity() IdentityClient

	// Call executes a single named API action against a service and returns
	// the parsed response attributes. The resource clients are thin wrappers
	// over this method.
	Call(ctx context.Context, service, action string, params *Params) (AttributeTree, error)
}

// ComputeClient provides access to compute resources.
type ComputeClient interface {
	DescribeInstances(ctx context.Context, params *Params) (AttributeTree, error)
	RunInstances(ctx context.Context, params *Params) (AttributeTree, error)
	StartInstances(ctx context.Context, instanceIDs ...string) (AttributeTree, error)
	StopInstances(ctx context.Context, instanceIDs ...string) (AttributeTree, error)
	TerminateInstances(ctx context.Context, instanceIDs ...string) (AttributeTree, error)

	DescribeVolumes(ctx context.Context, params *Params) (AttributeTree, error)
	CreateVolume(ctx context.Context, params *Params) (AttributeTree, error)
	DeleteVolume(ctx context.Context, volumeID string) error
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) (AttributeTree, error)
	DetachVolume(ctx context.Context, volumeID string) (AttributeTree, error)

	DescribeSnapshots(ctx context.Context, params *Params) (AttributeTree, error)
	CreateSnapshot(ctx context.Context, volumeID string, params *Params) (AttributeTree, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error

	// Instances, Volumes and Snapshots return lazy cursor-driven collections
	// over the corresponding Describe action.
	Instances(params *Params) *Collection
	Volumes(params *Params) *Collection
	Snapshots(params *Params) *Collection

	// Instance, Volume and Snapshot return lazily fetched entity views.
	Instance(instanceID string) *Model
	Volume(volumeID string) *Model
	Snapshot(snapshotID string) *Model
}

// IdentityClient provides access to identity resources.
type IdentityClient interface {
	ListUsers(ctx context.Context, params *Params) (AttributeTree, error)
	GetUser(ctx context.Context, userName string) (AttributeTree, error)
	CreateUser(ctx context.Context, userName string, params *Params) (AttributeTree, error)
	DeleteUser(ctx context.Context, userName string) error

	ListGroups(ctx context.Context, params *Params) (AttributeTree, error)

	ListAccessKeys(ctx context.Context, userName string) (AttributeTree, error)
	CreateAccessKey(ctx context.Context, userName string) (AttributeTree, error)
	DeleteAccessKey(ctx context.Context, userName, accessKeyID string) error

	Users(params *Params) *Collection
	Groups(params *Params) *Collection
	AccessKeys(userName string) *Collection

	User(userName string) *Model
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Credentials holds the signing material for a Cumulo API principal. Treat a
// Credentials value as immutable once constructed; rotation means building a
// new Config rather than mutating a shared value.
type Credentials struct {
	// AccessKeyID identifies the principal.
	AccessKeyID string
	// SecretAccessKey is the signing secret. Never logged or persisted by
	// this library.
	SecretAccessKey string
	// SessionToken is the optional token for temporary credentials. Sent as
	// SecurityToken (query protocol) or X-Cumulo-Security-Token (JSON
	// protocol) when present.
	SessionToken string
}

// Valid reports whether the credentials carry both an access key ID and a
// secret.
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Config represents client configuration for building a cumulo.Client.
//
// # Endpoints and regions
//
// Either Endpoint or Region must be provided. When Endpoint is set it is used
// verbatim for every service (useful for test fixtures and private
// deployments); cumuloclient.New normalizes it by trimming a trailing slash
// and adding "https://" if no scheme is present. When only Region is set, the
// per-service endpoint is derived as "https://<service>.<region>.cumulo.dev".
//
// # Credentials and signing
//
// Requests are signed with Credentials using the signature scheme implied by
// Protocol: signature version 2 query signing for ProtocolQuery, signed
// headers for ProtocolJSON. A request is never dispatched without a valid
// signature; absent or blank credentials fail the call before any network
// activity. Each retry attempt is re-signed with a fresh timestamp because
// the service rejects signatures whose timestamp has skewed beyond its
// tolerance window.
//
// # Timeouts and retries
//
// Per-request deadlines should generally be controlled via the context passed
// to client methods; HTTPTimeout applies only when the caller's context
// carries no deadline. Transient failures (connection errors, HTTP 5xx,
// throttling) are retried with exponential backoff tuned via
// RetryMax/RetryWaitMin/RetryWaitMax. Client-side errors are never retried.
type Config struct {
	// Endpoint: explicit base URL for all services. Overrides Region-based
	// endpoint derivation when set.
	Endpoint string
	// Region: region identifier (e.g. "us-central-1") used to derive
	// per-service endpoints when Endpoint is empty.
	Region string

	// Credentials: signing material. Required for every call.
	Credentials *Credentials

	// Protocol: wire encoding. Defaults to ProtocolQuery.
	Protocol Protocol

	// HTTPTimeout: fallback per-request timeout applied when the caller's
	// context has no deadline. If 0, a sensible default is used.
	HTTPTimeout time.Duration
	// RetryMax: maximum number of additional attempts for transient
	// failures. If 0, a sensible default is used.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration

	// Debug: enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string

	// Cache: optional read-through response cache for Describe/List/Get
	// actions. Nil disables caching.
	Cache *CacheConfig

	// RequestInterceptors run in order before each attempt is dispatched.
	RequestInterceptors []RequestInterceptor
	// ResponseInterceptors run in order after a response is received.
	ResponseInterceptors []ResponseInterceptor
}

// Package signing implements the request authentication strategies for the
// Cumulo API: signature version 2 for the query protocol and signed-header
// authentication for the JSON protocol.
package signing

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// Request is the mutable pre-signing form of one API call. The query
// protocol strategy signs and mutates Params; the JSON protocol strategy
// signs Body and mutates Headers.
type Request struct {
	// Host is the endpoint host, including the port when non-default.
	Host string
	// Path is the request path. Empty is treated as "/".
	Path string

	// Params carries the form parameters for the query protocol.
	Params url.Values

	// Headers carries the request headers for the JSON protocol.
	Headers http.Header
	// Target is the X-Cumulo-Target operation identifier.
	Target string
	// Body is the JSON request body.
	Body []byte
}

// Signer authenticates one outgoing request. Implementations are
// deterministic: identical request, credentials and timestamp always yield
// the identical signature. Signing a request again replaces the earlier
// signing material, so the transport can re-sign every retry attempt with a
// fresh timestamp.
type Signer interface {
	Sign(req *Request, creds *cumulo.Credentials, at time.Time) error
}

// ForProtocol returns the signer matching the configured wire protocol.
func ForProtocol(protocol cumulo.Protocol) (Signer, error) {
	switch protocol {
	case cumulo.ProtocolQuery, "":
		return NewV2Signer(), nil
	case cumulo.ProtocolJSON:
		return NewV3Signer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", cumulo.ErrUnsupportedProtocol, protocol)
	}
}

// validateCredentials rejects absent or blank signing material before any
// network activity.
func validateCredentials(creds *cumulo.Credentials) error {
	if creds == nil {
		return cumulo.ErrCredentialsRequired
	}

	if strings.TrimSpace(creds.AccessKeyID) == "" || strings.TrimSpace(creds.SecretAccessKey) == "" {
		return cumulo.ErrInvalidCredentials
	}

	return nil
}

// signingPath normalizes the request path for canonicalization.
func signingPath(path string) string {
	if path == "" {
		return "/"
	}

	return path
}

// Package wire decodes Cumulo API response bodies into attribute trees:
// XML envelopes for the query protocol and JSON bodies for the JSON
// protocol. Element and field names are inflected to local snake_case.
package wire

import (
	"fmt"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// snippetLimit bounds how much of a malformed body is echoed in errors.
const snippetLimit = 64

// Parser decodes one protocol's response bodies.
type Parser interface {
	// Decode parses a success body into an attribute tree. The envelope's
	// requestId and nextToken come back as the "request_id" and "next_token"
	// attributes.
	Decode(body []byte) (cumulo.AttributeTree, error)

	// DecodeError recognizes an error envelope and returns the decoded API
	// error, or nil when the body is not an error envelope.
	DecodeError(statusCode int, body []byte) *cumulo.APIError
}

// ForProtocol returns the parser matching the configured wire protocol.
func ForProtocol(protocol cumulo.Protocol) (Parser, error) {
	switch protocol {
	case cumulo.ProtocolQuery, "":
		return NewQueryParser(), nil
	case cumulo.ProtocolJSON:
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", cumulo.ErrUnsupportedProtocol, protocol)
	}
}

// malformed wraps a decode failure with the start of the offending body.
func malformed(body []byte, err error) error {
	snippet := string(body)
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}

	return &cumulo.MalformedResponseError{Snippet: snippet, Err: err}
}

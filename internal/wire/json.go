package wire

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cumulo-io/cumulo-client/internal/inflect"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// JSONParser decodes the JSON bodies returned by the JSON protocol. Field
// names are inflected to snake_case; values keep their native JSON types.
type JSONParser struct{}

// NewJSONParser creates a JSON response parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Decode parses a success body into an attribute tree. Operations without
// response data return an empty body, which decodes to an empty tree.
func (p *JSONParser) Decode(body []byte) (cumulo.AttributeTree, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return cumulo.AttributeTree{}, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, malformed(body, err)
	}

	return localizeMap(raw), nil
}

// DecodeError recognizes both JSON error shapes: the target-style
// {"__type": "...", "message": "..."} and the enveloped
// {"error": {"code": ..., "message": ...}, "requestId": ...}.
func (p *JSONParser) DecodeError(statusCode int, body []byte) *cumulo.APIError {
	var envelope struct {
		Type       string `json:"__type"`
		Message    string `json:"message"`
		MessageCap string `json:"Message"`
		Err        *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		RequestID string `json:"requestId"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	message := envelope.Message
	if message == "" {
		message = envelope.MessageCap
	}

	switch {
	case envelope.Type != "":
		return &cumulo.APIError{
			Code:       errorCodeFromType(envelope.Type),
			Message:    message,
			StatusCode: statusCode,
		}
	case envelope.Err != nil && envelope.Err.Code != "":
		return &cumulo.APIError{
			Code:       envelope.Err.Code,
			Message:    envelope.Err.Message,
			RequestID:  envelope.RequestID,
			StatusCode: statusCode,
		}
	}

	return nil
}

// errorCodeFromType strips the namespace prefix some services put in front of
// the __type code ("com.cumulo.compute#Throttling" -> "Throttling").
func errorCodeFromType(errorType string) string {
	if idx := strings.LastIndex(errorType, "#"); idx >= 0 {
		return errorType[idx+1:]
	}

	return errorType
}

// localizeValue inflects map keys recursively, leaving scalars untouched.
func localizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return localizeMap(typed)
	case []interface{}:
		localized := make([]interface{}, len(typed))
		for i, item := range typed {
			localized[i] = localizeValue(item)
		}

		return localized
	default:
		return typed
	}
}

func localizeMap(raw map[string]interface{}) cumulo.AttributeTree {
	tree := make(cumulo.AttributeTree, len(raw))
	for key, value := range raw {
		tree[inflect.ToLocal(key)] = localizeValue(value)
	}

	return tree
}

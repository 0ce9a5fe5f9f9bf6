package wire

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/cumulo-io/cumulo-client/internal/inflect"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// QueryParser decodes the XML envelopes returned by the query protocol.
//
// The root {Action}Response element is unwrapped, element names are inflected
// to snake_case, <item> children and repeated siblings become sequences, and
// scalar values stay strings for the attribute tree accessors to coerce.
type QueryParser struct{}

// NewQueryParser creates an XML response parser.
func NewQueryParser() *QueryParser {
	return &QueryParser{}
}

// Decode parses a success envelope into an attribute tree.
func (p *QueryParser) Decode(body []byte) (cumulo.AttributeTree, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, malformed(body, cumulo.ErrEmptyResponse)
	}

	decoder := xml.NewDecoder(bytes.NewReader(trimmed))

	root, err := nextStart(decoder)
	if err != nil {
		return nil, malformed(body, err)
	}

	value, err := decodeElement(decoder, root)
	if err != nil {
		return nil, malformed(body, err)
	}

	tree, ok := value.(cumulo.AttributeTree)
	if !ok {
		// A childless root decodes to a scalar; keep it under the inflected
		// root name so callers always receive a tree.
		return cumulo.AttributeTree{inflect.ToLocal(root.Name.Local): value}, nil
	}

	return tree, nil
}

// DecodeError recognizes the <ErrorResponse> envelope, which the service
// returns with any status code, including 200.
func (p *QueryParser) DecodeError(statusCode int, body []byte) *cumulo.APIError {
	var envelope struct {
		XMLName xml.Name `xml:"ErrorResponse"`
		Err     struct {
			Code    string `xml:"Code"`
			Message string `xml:"Message"`
		} `xml:"Error"`
		RequestID string `xml:"RequestId"`
	}

	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if envelope.Err.Code == "" {
		return nil
	}

	return &cumulo.APIError{
		Code:       envelope.Err.Code,
		Message:    envelope.Err.Message,
		RequestID:  envelope.RequestID,
		StatusCode: statusCode,
	}
}

// nextStart advances the decoder to the next opening element.
func nextStart(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		token, err := decoder.Token()
		if err != nil {
			return xml.StartElement{}, err
		}

		if start, ok := token.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// decodeElement consumes everything up to start's closing tag and returns the
// element's value: a tree when it has named children, a sequence when its
// children are <item> elements, and the trimmed text otherwise.
func decodeElement(decoder *xml.Decoder, start xml.StartElement) (interface{}, error) {
	var (
		text     strings.Builder
		children cumulo.AttributeTree
		items    []interface{}
		hasItems bool
	)

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch typed := token.(type) {
		case xml.StartElement:
			child, err := decodeElement(decoder, typed)
			if err != nil {
				return nil, err
			}

			if typed.Name.Local == "item" {
				items = append(items, child)
				hasItems = true

				continue
			}

			key := inflect.ToLocal(typed.Name.Local)
			if children == nil {
				children = cumulo.AttributeTree{}
			}

			if existing, ok := children[key]; ok {
				// A repeated sibling promotes the attribute to a sequence.
				if sequence, ok := existing.([]interface{}); ok {
					children[key] = append(sequence, child)
				} else {
					children[key] = []interface{}{existing, child}
				}
			} else {
				children[key] = child
			}
		case xml.CharData:
			text.Write(typed)
		case xml.EndElement:
			if hasItems {
				return items, nil
			}

			if children != nil {
				return children, nil
			}

			return strings.TrimSpace(text.String()), nil
		}
	}
}

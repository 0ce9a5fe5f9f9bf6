package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// V2Signer implements signature version 2 query signing: the signing
// parameters are injected into the form body and Signature is a base64
// HMAC-SHA256 over the canonical request string.
type V2Signer struct{}

// NewV2Signer creates a query protocol signer.
func NewV2Signer() *V2Signer {
	return &V2Signer{}
}

// Sign injects AccessKeyId, SignatureMethod, SignatureVersion, Timestamp and
// (for temporary credentials) SecurityToken into req.Params, then computes
// the Signature parameter. Any signing material from an earlier attempt is
// replaced, never appended to.
func (s *V2Signer) Sign(req *Request, creds *cumulo.Credentials, at time.Time) error {
	err := validateCredentials(creds)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	if req.Params == nil {
		req.Params = url.Values{}
	}

	req.Params.Del("Signature")
	req.Params.Set("AccessKeyId", creds.AccessKeyID)
	req.Params.Set("SignatureMethod", constants.SignatureMethod)
	req.Params.Set("SignatureVersion", constants.SignatureVersion)
	req.Params.Set("Timestamp", at.UTC().Format(constants.TimestampFormat))

	if creds.SessionToken != "" {
		req.Params.Set("SecurityToken", creds.SessionToken)
	} else {
		req.Params.Del("SecurityToken")
	}

	mac := hmac.New(sha256.New, []byte(creds.SecretAccessKey))
	mac.Write([]byte(StringToSign(req.Host, req.Path, req.Params)))

	req.Params.Set("Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return nil
}

// StringToSign builds the signature version 2 canonical request string:
// method, lowercase host, path and canonical query joined by newlines.
func StringToSign(host, path string, params url.Values) string {
	return "POST\n" + strings.ToLower(host) + "\n" + signingPath(path) + "\n" + CanonicalQuery(params)
}

// CanonicalQuery renders params as percent-encoded name=value pairs sorted
// bytewise, joined with "&". The Signature parameter must not be present
// when the canonical query feeds the signature computation.
func CanonicalQuery(params url.Values) string {
	type pair struct {
		name  string
		value string
	}

	pairs := make([]pair, 0, len(params))

	for name, values := range params {
		for _, value := range values {
			pairs = append(pairs, pair{
				name:  PercentEncode(name),
				value: PercentEncode(value),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}

		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, 0, len(pairs))

	for _, p := range pairs {
		encoded = append(encoded, p.name+"="+p.value)
	}

	return strings.Join(encoded, "&")
}

// PercentEncode escapes s per RFC 3986: unreserved bytes pass through,
// everything else becomes %XX with uppercase hex. Space encodes as %20,
// never "+", and "~" stays unescaped.
func PercentEncode(s string) string {
	var encoded strings.Builder

	for i := range len(s) {
		c := s[i]
		if isUnreserved(c) {
			encoded.WriteByte(c)
		} else {
			fmt.Fprintf(&encoded, "%%%02X", c)
		}
	}

	return encoded.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}

package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// V3Signer implements signed-header authentication for the JSON protocol.
// The signature is a hex HMAC-SHA256 over the method, host, path, the signed
// header lines and the SHA-256 of the request body, carried in the
// Authorization header.
type V3Signer struct{}

// NewV3Signer creates a JSON protocol signer.
func NewV3Signer() *V3Signer {
	return &V3Signer{}
}

// Sign sets X-Cumulo-Date, X-Cumulo-Target, X-Cumulo-Security-Token (for
// temporary credentials) and Authorization on req.Headers. Headers from an
// earlier signing attempt are replaced. The timestamp is part of the signed
// material, so every re-sign yields a new signature.
func (s *V3Signer) Sign(req *Request, creds *cumulo.Credentials, at time.Time) error {
	err := validateCredentials(creds)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	if req.Headers == nil {
		req.Headers = http.Header{}
	}

	host := strings.ToLower(req.Host)
	date := at.UTC().Format(constants.TimestampFormat)

	req.Headers.Set("X-Cumulo-Date", date)
	req.Headers.Set("X-Cumulo-Target", req.Target)

	if creds.SessionToken != "" {
		req.Headers.Set("X-Cumulo-Security-Token", creds.SessionToken)
	} else {
		req.Headers.Del("X-Cumulo-Security-Token")
	}

	payloadHash := sha256.Sum256(req.Body)

	headerLines := "host:" + host + "\n" +
		"x-cumulo-date:" + date + "\n" +
		"x-cumulo-target:" + req.Target

	stringToSign := "POST\n" + host + "\n" + signingPath(req.Path) + "\n" +
		headerLines + "\n" + hex.EncodeToString(payloadHash[:])

	mac := hmac.New(sha256.New, []byte(creds.SecretAccessKey))
	mac.Write([]byte(stringToSign))

	req.Headers.Set("Authorization", fmt.Sprintf("%s Credential=%s, SignedHeaders=%s, Signature=%s",
		constants.AuthSchemePrefix, creds.AccessKeyID, constants.SignedHeaders,
		hex.EncodeToString(mac.Sum(nil))))

	return nil
}

package http_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	cumulohttp "github.com/cumulo-io/cumulo-client/internal/http"
	"github.com/cumulo-io/cumulo-client/internal/signing"
	"github.com/cumulo-io/cumulo-client/internal/wire"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

const testSecretKey = "secret"

const describeVolumesEnvelope = `<DescribeVolumesResponse>
  <requestId>req-1</requestId>
  <volumes>
    <item>
      <volumeId>vol-123</volumeId>
      <size>8</size>
      <state>available</state>
    </item>
  </volumes>
</DescribeVolumesResponse>`

const (
	throttlingEnvelope      = `<ErrorResponse><Error><Code>Throttling</Code><Message>Rate exceeded</Message></Error><RequestId>req-thr</RequestId></ErrorResponse>`
	requestExpiredEnvelope  = `<ErrorResponse><Error><Code>RequestExpired</Code><Message>Signature timestamp expired</Message></Error><RequestId>req-exp</RequestId></ErrorResponse>`
	internalFailureEnvelope = `<ErrorResponse><Error><Code>InternalFailure</Code><Message>Unexpected condition</Message></Error><RequestId>req-int</RequestId></ErrorResponse>`
	invalidParameterBody    = `<ErrorResponse><Error><Code>InvalidParameterValue</Code><Message>Value 8000 for parameter size exceeds the quota</Message></Error><RequestId>req-bad</RequestId></ErrorResponse>`
	accessDeniedBody        = `<ErrorResponse><Error><Code>AccessDenied</Code><Message>Not authorized</Message></Error><RequestId>req-den</RequestId></ErrorResponse>`
	notFoundBody            = `<ErrorResponse><Error><Code>VolumeId.NotFound</Code><Message>vol-404 does not exist</Message></Error><RequestId>req-404</RequestId></ErrorResponse>`
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type testLogger struct {
	entries []logEntry
}

func (l *testLogger) Debug(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{level: "debug", msg: msg, fields: fields})
}

func (l *testLogger) Info(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{level: "info", msg: msg, fields: fields})
}

func (l *testLogger) Warn(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{level: "warn", msg: msg, fields: fields})
}

func (l *testLogger) Error(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{level: "error", msg: msg, fields: fields})
}

func testCredentials() *cumulo.Credentials {
	return &cumulo.Credentials{
		AccessKeyID:     "CMKEXAMPLE",
		SecretAccessKey: testSecretKey,
	}
}

func newTestClient(t *testing.T, endpoint string, opts ...cumulohttp.Option) *cumulohttp.Client {
	t.Helper()

	client, err := cumulohttp.NewClient(endpoint, testCredentials(), opts...)
	require.NoError(t, err)

	return client
}

func describeVolumesRequest() *cumulohttp.Request {
	return &cumulohttp.Request{
		Service: constants.ComputeService,
		Action:  "DescribeVolumes",
		Version: constants.ComputeAPIVersion,
		Params:  cumulo.NewParams().Set("volume_id", "vol-123"),
	}
}

// verifySignedForm checks the received query protocol signature by
// recomputing it from the form the server actually saw.
func verifySignedForm(t *testing.T, r *http.Request) url.Values {
	t.Helper()

	if !assert.NoError(t, r.ParseForm()) {
		return nil
	}

	form := url.Values{}

	for key, values := range r.PostForm {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	signature := form.Get("Signature")
	assert.NotEmpty(t, signature)
	form.Del("Signature")

	mac := hmac.New(sha256.New, []byte(testSecretKey))
	mac.Write([]byte(signing.StringToSign(r.Host, r.URL.Path, form)))

	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), signature,
		"request signature must verify against the received form")

	return r.PostForm
}

// verifySignedJSON checks the Authorization header by re-signing the
// received request at the timestamp it carries.
func verifySignedJSON(t *testing.T, r *http.Request, body []byte) {
	t.Helper()

	date := r.Header.Get("X-Cumulo-Date")
	if !assert.NotEmpty(t, date) {
		return
	}

	at, err := time.Parse(constants.TimestampFormat, date)
	if !assert.NoError(t, err) {
		return
	}

	signReq := &signing.Request{
		Host:   r.Host,
		Path:   r.URL.Path,
		Target: r.Header.Get("X-Cumulo-Target"),
		Body:   body,
	}

	if !assert.NoError(t, signing.NewV3Signer().Sign(signReq, testCredentials(), at)) {
		return
	}

	assert.Equal(t, signReq.Headers.Get("Authorization"), r.Header.Get("Authorization"),
		"authorization header must verify against the received body and date")
}

// steppingClock returns a clock that advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var (
		mu    sync.Mutex
		calls int
	)

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		at := start.Add(time.Duration(calls) * step)
		calls++

		return at
	}
}

func TestClient_Do_QueryProtocol(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/", request.URL.Path)
		assert.Equal(t, constants.ContentTypeForm, request.Header.Get("Content-Type"))
		assert.Equal(t, constants.DefaultUserAgent, request.Header.Get("User-Agent"))

		form := verifySignedForm(t, request)
		assert.Equal(t, "DescribeVolumes", form.Get("Action"))
		assert.Equal(t, constants.ComputeAPIVersion, form.Get("Version"))
		assert.Equal(t, "vol-123", form.Get("VolumeId"))
		assert.Equal(t, "CMKEXAMPLE", form.Get("AccessKeyId"))
		assert.Equal(t, constants.SignatureVersion, form.Get("SignatureVersion"))
		assert.Equal(t, constants.SignatureMethod, form.Get("SignatureMethod"))
		assert.NotEmpty(t, form.Get("Timestamp"))

		_, _ = writer.Write([]byte(describeVolumesEnvelope))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.Do(context.Background(), describeVolumesRequest())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)

	tree, err := client.Parser().Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-1", tree.String("request_id"))
	require.Len(t, tree.Trees("volumes"), 1)
	assert.Equal(t, "vol-123", tree.Trees("volumes")[0].String("volume_id"))
}

func TestClient_Do_JSONProtocol(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(request.Body)
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, constants.ContentTypeJSON, request.Header.Get("Content-Type"))
		assert.Equal(t, "Compute_20240615.DescribeVolumes", request.Header.Get("X-Cumulo-Target"))
		verifySignedJSON(t, request, body)

		var payload map[string]interface{}
		if assert.NoError(t, json.Unmarshal(body, &payload)) {
			assert.Equal(t, "vol-123", payload["VolumeId"])
		}

		_, _ = writer.Write([]byte(`{"requestId": "req-j1", "volumes": [{"volumeId": "vol-123", "size": 8}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, cumulohttp.WithProtocol(cumulo.ProtocolJSON))

	resp, err := client.Do(context.Background(), describeVolumesRequest())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)

	tree, err := client.Parser().Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-j1", tree.String("request_id"))
}

func TestClient_Do_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		firstStatus int
		firstBody   string
	}{
		{name: "plain 503", firstStatus: http.StatusServiceUnavailable, firstBody: "service unavailable"},
		{name: "plain 429", firstStatus: http.StatusTooManyRequests, firstBody: ""},
		{name: "throttling envelope in 200", firstStatus: http.StatusOK, firstBody: throttlingEnvelope},
		{name: "request expired envelope in 400", firstStatus: http.StatusBadRequest, firstBody: requestExpiredEnvelope},
		{name: "internal failure envelope in 500", firstStatus: http.StatusInternalServerError, firstBody: internalFailureEnvelope},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				verifySignedForm(t, request)

				if attempts.Add(1) == 1 {
					writer.WriteHeader(tc.firstStatus)
					_, _ = writer.Write([]byte(tc.firstBody))

					return
				}

				_, _ = writer.Write([]byte(describeVolumesEnvelope))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL,
				cumulohttp.WithRetryConfig(3, time.Millisecond, 10*time.Millisecond))

			resp, err := client.Do(context.Background(), describeVolumesRequest())
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 2, resp.Attempts)
			assert.Equal(t, int32(2), attempts.Load())
		})
	}
}

func TestClient_Do_DoesNotRetryTerminalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{name: "invalid parameter", status: http.StatusBadRequest, body: invalidParameterBody, wantCode: "InvalidParameterValue"},
		{name: "access denied", status: http.StatusForbidden, body: accessDeniedBody, wantCode: "AccessDenied"},
		{name: "not found", status: http.StatusNotFound, body: notFoundBody, wantCode: "VolumeId.NotFound"},
		{name: "unrecognized 400 body", status: http.StatusBadRequest, body: "plain text", wantCode: "UnknownError"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				attempts.Add(1)
				writer.WriteHeader(tc.status)
				_, _ = writer.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL,
				cumulohttp.WithRetryConfig(3, time.Millisecond, 10*time.Millisecond))

			resp, err := client.Do(context.Background(), describeVolumesRequest())
			require.Error(t, err)

			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, int32(1), attempts.Load())

			reqErr := &cumulo.RequestError{}
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, "DescribeVolumes", reqErr.Action)
			assert.Equal(t, 1, reqErr.Attempts)

			apiErr := &cumulo.APIError{}
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.wantCode, apiErr.Code)
			assert.Equal(t, tc.status, apiErr.StatusCode)

			assert.False(t, cumulo.IsRetryable(err))
		})
	}
}

func TestClient_Do_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts.Add(1)
		writer.WriteHeader(http.StatusBadGateway)
		_, _ = writer.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		cumulohttp.WithRetryConfig(1, time.Millisecond, 5*time.Millisecond))

	resp, err := client.Do(context.Background(), describeVolumesRequest())
	require.Error(t, err)

	assert.Equal(t, int32(2), attempts.Load())
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 2, resp.Attempts)

	assert.Contains(t, err.Error(), "DescribeVolumes failed after 2 attempt(s)")

	apiErr := &cumulo.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UnknownError", apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, cumulo.IsRetryable(err))
}

func TestClient_Do_ResignsEachQueryAttempt(t *testing.T) {
	t.Parallel()

	var (
		mu         sync.Mutex
		timestamps []string
		signatures []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		form := verifySignedForm(t, request)

		mu.Lock()
		timestamps = append(timestamps, form.Get("Timestamp"))
		signatures = append(signatures, form.Get("Signature"))
		count := len(timestamps)
		mu.Unlock()

		if count == 1 {
			writer.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = writer.Write([]byte(describeVolumesEnvelope))
	}))
	defer server.Close()

	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	client := newTestClient(t, server.URL,
		cumulohttp.WithRetryConfig(2, time.Millisecond, 5*time.Millisecond),
		cumulohttp.WithClock(steppingClock(start, 30*time.Second)))

	resp, err := client.Do(context.Background(), describeVolumesRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)

	require.Len(t, timestamps, 2)
	assert.Equal(t, "2024-06-15T12:00:00Z", timestamps[0])
	assert.Equal(t, "2024-06-15T12:00:30Z", timestamps[1])
	assert.NotEqual(t, signatures[0], signatures[1],
		"a fresh timestamp must produce a fresh signature")
}

func TestClient_Do_ResignsHeadersEachJSONAttempt(t *testing.T) {
	t.Parallel()

	var (
		mu             sync.Mutex
		dates          []string
		authorizations []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(request.Body)
		if !assert.NoError(t, err) {
			return
		}

		verifySignedJSON(t, request, body)

		mu.Lock()
		dates = append(dates, request.Header.Get("X-Cumulo-Date"))
		authorizations = append(authorizations, request.Header.Get("Authorization"))
		count := len(dates)
		mu.Unlock()

		if count == 1 {
			writer.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = writer.Write([]byte(`{"requestId": "req-j2"}`))
	}))
	defer server.Close()

	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	client := newTestClient(t, server.URL,
		cumulohttp.WithProtocol(cumulo.ProtocolJSON),
		cumulohttp.WithRetryConfig(2, time.Millisecond, 5*time.Millisecond),
		cumulohttp.WithClock(steppingClock(start, 30*time.Second)))

	resp, err := client.Do(context.Background(), describeVolumesRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)

	require.Len(t, dates, 2)
	assert.NotEqual(t, dates[0], dates[1])
	assert.NotEqual(t, authorizations[0], authorizations[1])
}

func TestClient_Do_SendsSessionTokenAndExtraHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		form := verifySignedForm(t, request)
		assert.Equal(t, "tok-123", form.Get("SecurityToken"))
		assert.Equal(t, "trace-1", request.Header.Get("X-Trace-Id"))

		_, _ = writer.Write([]byte(describeVolumesEnvelope))
	}))
	defer server.Close()

	credentials := testCredentials()
	credentials.SessionToken = "tok-123"

	client, err := cumulohttp.NewClient(server.URL, credentials)
	require.NoError(t, err)

	req := describeVolumesRequest()
	req.Headers = map[string]string{"X-Trace-Id": "trace-1"}

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Do_CredentialFailures(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts.Add(1)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Run("nil credentials", func(t *testing.T) {
		client, err := cumulohttp.NewClient(server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(context.Background(), describeVolumesRequest())
		assert.ErrorIs(t, err, cumulo.ErrCredentialsRequired)
	})

	t.Run("missing secret", func(t *testing.T) {
		client, err := cumulohttp.NewClient(server.URL, &cumulo.Credentials{AccessKeyID: "CMKEXAMPLE"})
		require.NoError(t, err)

		_, err = client.Do(context.Background(), describeVolumesRequest())
		assert.ErrorIs(t, err, cumulo.ErrInvalidCredentials)
	})

	assert.Equal(t, int32(0), attempts.Load(), "credential failures must not reach the network")
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-request.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, describeVolumesRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	reqErr := &cumulo.RequestError{}
	assert.ErrorAs(t, err, &reqErr)
}

func TestClient_Do_FallbackTimeoutWithoutDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-request.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, cumulohttp.WithHTTPTimeout(30*time.Millisecond))

	_, err := client.Do(context.Background(), describeVolumesRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Do_DebugLogging(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(describeVolumesEnvelope))
	}))
	defer server.Close()

	logger := &testLogger{}
	client := newTestClient(t, server.URL,
		cumulohttp.WithLogger(logger),
		cumulohttp.WithDebug(true))

	_, err := client.Do(context.Background(), describeVolumesRequest())
	require.NoError(t, err)

	require.Len(t, logger.entries, 2)
	assert.Equal(t, "HTTP Request", logger.entries[0].msg)
	assert.Equal(t, "DescribeVolumes", logger.entries[0].fields["action"])
	assert.Equal(t, "HTTP Response", logger.entries[1].msg)
	assert.Equal(t, http.StatusOK, logger.entries[1].fields["status"])
	assert.Equal(t, 1, logger.entries[1].fields["attempts"])
}

func TestNewClient_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unsupported protocol", func(t *testing.T) {
		t.Parallel()

		_, err := cumulohttp.NewClient("https://compute.us-central-1.cumulo.dev", testCredentials(),
			cumulohttp.WithProtocol("soap"))
		assert.ErrorIs(t, err, cumulo.ErrUnsupportedProtocol)
	})

	t.Run("unparseable endpoint", func(t *testing.T) {
		t.Parallel()

		_, err := cumulohttp.NewClient("http://[::1", testCredentials())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing endpoint")
	})
}

func TestClient_Parser(t *testing.T) {
	t.Parallel()

	queryClient := newTestClient(t, "https://compute.us-central-1.cumulo.dev")
	assert.IsType(t, &wire.QueryParser{}, queryClient.Parser())

	jsonClient := newTestClient(t, "https://compute.us-central-1.cumulo.dev",
		cumulohttp.WithProtocol(cumulo.ProtocolJSON))
	assert.IsType(t, &wire.JSONParser{}, jsonClient.Parser())
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	waitMin := 100 * time.Millisecond
	waitMax := time.Second

	deterministic := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}

	for attempt, floor := range deterministic {
		for i := 0; i < 25; i++ {
			wait := cumulohttp.Backoff(waitMin, waitMax, attempt, nil)
			assert.GreaterOrEqual(t, wait, floor)
			assert.Less(t, wait, floor+waitMin)
		}
	}

	t.Run("zero wait", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, time.Duration(0), cumulohttp.Backoff(0, time.Second, 3, nil))
	})
}

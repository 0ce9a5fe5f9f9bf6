package client

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// fakeService is a scripted query-protocol endpoint. Responses are stubbed
// per action and consumed in order; the last stubbed response repeats once
// the queue drains. Unstubbed actions answer with an InvalidAction envelope.
type fakeService struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	calls     []capturedCall
	responses map[string][]fakeResponse
}

type capturedCall struct {
	action string
	form   url.Values
	header http.Header
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	fake := &fakeService{
		t:         t,
		responses: make(map[string][]fakeResponse),
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.server.Close)

	return fake
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	if !assert.NoError(f.t, r.ParseForm()) {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	action := r.PostForm.Get("Action")

	f.mu.Lock()

	f.calls = append(f.calls, capturedCall{
		action: action,
		form:   cloneValues(r.PostForm),
		header: r.Header.Clone(),
	})

	resp := fakeResponse{
		status: http.StatusBadRequest,
		body:   errorEnvelope("InvalidAction", "The action "+action+" is not stubbed."),
	}

	if queue := f.responses[action]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[action] = queue[1:]
		}
	}

	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

// stub queues responses for one action.
func (f *fakeService) stub(action string, responses ...fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses[action] = append(f.responses[action], responses...)
}

// ok stubs a single 200 response for one action.
func (f *fakeService) ok(action, body string) {
	f.stub(action, fakeResponse{status: http.StatusOK, body: body})
}

func (f *fakeService) callCount(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0

	for _, call := range f.calls {
		if call.action == action {
			count++
		}
	}

	return count
}

func (f *fakeService) lastCall(action string) (capturedCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].action == action {
			return f.calls[i], true
		}
	}

	return capturedCall{}, false
}

func (f *fakeService) allCalls(action string) []capturedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []capturedCall

	for _, call := range f.calls {
		if call.action == action {
			matched = append(matched, call)
		}
	}

	return matched
}

// config returns a client config pointed at the fake endpoint.
func (f *fakeService) config() *cumulo.Config {
	return &cumulo.Config{
		Endpoint: f.server.URL,
		Credentials: &cumulo.Credentials{
			AccessKeyID:     "CMKTEST",
			SecretAccessKey: "test-secret",
		},
	}
}

func cloneValues(values url.Values) url.Values {
	clone := url.Values{}

	for key, vals := range values {
		clone[key] = append([]string(nil), vals...)
	}

	return clone
}

func errorEnvelope(code, message string) string {
	return `<ErrorResponse><Error><Code>` + code + `</Code><Message>` + message +
		`</Message></Error><RequestId>req-err</RequestId></ErrorResponse>`
}

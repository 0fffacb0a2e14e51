package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/pkg/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// fakeNotion records requests and answers them with queued handlers
type fakeNotion struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(n int, req recordedRequest, w http.ResponseWriter)
}

func newFakeNotion(t *testing.T, respond func(n int, req recordedRequest, w http.ResponseWriter)) (*fakeNotion, *httptest.Server) {
	f := &fakeNotion{respond: respond}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		req := recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &req.Body))
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		n := len(f.requests)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		f.respond(n, req, w)
	}))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeNotion) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func testClient(baseURL string, sleeps *[]time.Duration) *Client {
	return NewClient(ClientOptions{
		BaseURL: baseURL + "/v1",
		Token:   "secret_test",
		Retry: helpers.RetryPolicy{
			Attempts: 3,
			Backoff:  10 * time.Millisecond,
			Sleep: func(ctx context.Context, d time.Duration) error {
				if sleeps != nil {
					*sleeps = append(*sleeps, d)
				}
				return nil
			},
		},
	})
}

func TestCreatePage(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, `{"object":"page","id":"page-1","url":"https://www.notion.so/page-1"}`)
	})

	client := testClient(server.URL, nil)
	page, err := client.CreatePage(context.Background(), "db-1", Properties{
		PropName: TitleProperty("協會", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", page.ID)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/pages", req.Path)
	assert.Equal(t, "Bearer secret_test", req.Header.Get("Authorization"))
	assert.Equal(t, DefaultVersion, req.Header.Get("Notion-Version"))
	assert.Contains(t, req.Header.Get("Content-Type"), "application/json")

	parent := req.Body["parent"].(map[string]any)
	assert.Equal(t, "db-1", parent["database_id"])
	props := req.Body["properties"].(map[string]any)
	assert.Contains(t, props, PropName)
}

func TestQueryDatabaseFollowsCursor(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		if n == 1 {
			writeJSON(w, http.StatusOK, `{"object":"list","results":[{"id":"a"},{"id":"b"}],"has_more":true,"next_cursor":"cursor-2"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"object":"list","results":[{"id":"c"}],"has_more":false,"next_cursor":null}`)
	})

	client := testClient(server.URL, nil)
	pages, err := client.QueryDatabase(context.Background(), "db-9")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{pages[0].ID, pages[1].ID, pages[2].ID})

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/v1/databases/db-9/query", reqs[0].Path)
	assert.NotContains(t, reqs[0].Body, "start_cursor")
	assert.Equal(t, "cursor-2", reqs[1].Body["start_cursor"])
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		if n == 1 {
			w.Header().Set("Retry-After", "2")
			writeJSON(w, http.StatusTooManyRequests, `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"object":"page","id":"page-2"}`)
	})

	var sleeps []time.Duration
	client := testClient(server.URL, &sleeps)
	page, err := client.CreatePage(context.Background(), "db-1", Properties{})
	require.NoError(t, err)
	assert.Equal(t, "page-2", page.ID)
	assert.Len(t, fake.Requests(), 2)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps)
}

func TestCreatePageServerErrorIsNotRetried(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		if n == 1 {
			writeJSON(w, http.StatusBadGateway, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"object":"page","id":"page-dup"}`)
	})

	client := testClient(server.URL, nil)
	_, err := client.CreatePage(context.Background(), "db-1", Properties{})
	require.Error(t, err)
	assert.Len(t, fake.Requests(), 1, "a failed create may already be committed")

	pe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeNetwork, pe.Type)
	assert.Equal(t, http.StatusBadGateway, pe.Status)
}

func TestUploadRecordsServerErrorOnce(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		if n == 1 {
			writeJSON(w, http.StatusBadGateway, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"object":"page","id":"page-ok"}`)
	})

	uploader := NewUploader(testClient(server.URL, nil), UploaderOptions{Pause: func(ctx context.Context, d time.Duration) error { return nil }})
	summary, err := uploader.Upload(context.Background(), "db-1", rows("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "A", summary.Failed[0].Identifier)
	assert.Len(t, fake.Requests(), 2, "one POST per row")
}

func TestQueryServerErrorsAreRetried(t *testing.T) {
	fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})

	var sleeps []time.Duration
	client := testClient(server.URL, &sleeps)
	_, err := client.QueryDatabase(context.Background(), "db-1")
	require.Error(t, err)
	assert.Len(t, fake.Requests(), 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 40 * time.Millisecond}, sleeps)
	assert.True(t, errors.IsRetryable(err))
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		errType   errors.ErrorType
		fatal     bool
		wantInMsg string
	}{
		{
			name:      "unauthorized",
			status:    http.StatusUnauthorized,
			body:      `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`,
			errType:   errors.ErrorTypeAuth,
			fatal:     true,
			wantInMsg: "unauthorized",
		},
		{
			name:      "validation",
			status:    http.StatusBadRequest,
			body:      `{"object":"error","status":400,"code":"validation_error","message":"Email is not a property that exists."}`,
			errType:   errors.ErrorTypeValidation,
			wantInMsg: "validation_error",
		},
		{
			name:      "not found without body",
			status:    http.StatusNotFound,
			body:      ``,
			errType:   errors.ErrorTypeValidation,
			wantInMsg: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
				writeJSON(w, tt.status, tt.body)
			})

			client := testClient(server.URL, nil)
			_, err := client.CreatePage(context.Background(), "db-1", Properties{})
			require.Error(t, err)
			assert.Len(t, fake.Requests(), 1, "non-retryable errors are not retried")

			pe, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.errType, pe.Type)
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, tt.fatal, errors.IsFatal(err))
			assert.Contains(t, err.Error(), tt.wantInMsg)
		})
	}
}

func TestCreatePageCancelled(t *testing.T) {
	_, server := newFakeNotion(t, func(n int, req recordedRequest, w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := testClient(server.URL, nil)
	_, err := client.CreatePage(ctx, "db-1", Properties{})
	assert.ErrorIs(t, err, context.Canceled)
}

// internal/completion/client_test.go
package completion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("DEBUG: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(&Config{
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}, &TestLogger{t: t})
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClient_CreateResponse_Grounded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(betaHeader))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "model-a", body["model"])
		assert.Equal(t, "be brief", body["instructions"])
		assert.Equal(t, 0.2, body["temperature"])

		input := body["input"].([]interface{})
		require.Len(t, input, 2)
		assert.Equal(t, "assistant", input[0].(map[string]interface{})["role"])
		last := input[1].(map[string]interface{})
		assert.Equal(t, "user", last["role"])
		assert.Equal(t, "how do I reset?", last["content"])

		tools := body["tools"].([]interface{})
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]interface{})
		assert.Equal(t, "file_search", tool["type"])
		assert.Equal(t, []interface{}{"vs_1"}, tool["vector_store_ids"])

		writeJSON(w, http.StatusOK, `{"id":"resp_1","output_text":"Press the button."}`)
	})

	temperature := 0.2
	raw, err := client.CreateResponse(context.Background(), ResponseRequest{
		Model:        "model-a",
		Instructions: "be brief",
		History:      []models.Turn{{Role: "assistant", Content: "hello"}},
		Question:     "how do I reset?",
		Temperature:  &temperature,
		IndexID:      "vs_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Press the button.", raw["output_text"])
}

func TestClient_CreateResponse_UngroundedOmitsTools(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasTools := body["tools"]
		assert.False(t, hasTools)
		writeJSON(w, http.StatusOK, `{"output_text":"ok"}`)
	})

	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q"})
	require.NoError(t, err)
}

func TestClient_CreateResponse_Temperature(t *testing.T) {
	var bodies []map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		writeJSON(w, http.StatusOK, `{"output_text":"ok"}`)
	})

	zero := 0.0
	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q", Temperature: &zero})
	require.NoError(t, err)
	_, err = client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q"})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	temp, sent := bodies[0]["temperature"]
	assert.True(t, sent)
	assert.Equal(t, 0.0, temp)
	_, sent = bodies[1]["temperature"]
	assert.False(t, sent)
}

func TestClient_CreateResponse_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected apperrors.ErrorCode
	}{
		{"unknown parameter", 400, `{"error":{"message":"Unknown parameter: 'tools'","type":"invalid_request_error","code":"unknown_parameter","param":"tools"}}`, apperrors.ErrCodeUnsupportedFeature},
		{"invalid value", 400, `{"error":{"message":"Invalid value: 'file_search'","code":"invalid_value"}}`, apperrors.ErrCodeUnsupportedFeature},
		{"model not found", 404, `{"error":{"message":"The model does not exist","code":"model_not_found"}}`, apperrors.ErrCodeUnsupportedFeature},
		{"message heuristic", 400, `{"error":{"message":"Unknown parameter: 'tool_resources'."}}`, apperrors.ErrCodeUnsupportedFeature},
		{"rate limited", 429, `{"error":{"message":"Rate limit reached","code":"rate_limit_exceeded"}}`, apperrors.ErrCodeRateLimited},
		{"quota", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, apperrors.ErrCodeInsufficientQuota},
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key provided"}}`, apperrors.ErrCodeUnauthorized},
		{"forbidden", 403, `{"error":{"message":"no access"}}`, apperrors.ErrCodeUnauthorized},
		{"server error", 500, `{"error":{"message":"boom"}}`, apperrors.ErrCodeServiceUnavailable},
		{"bad gateway without json", 502, `<html>bad gateway</html>`, apperrors.ErrCodeServiceUnavailable},
		{"plain bad request", 400, `{"error":{"message":"messages too long","code":"context_length_exceeded"}}`, apperrors.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q"})
			require.Error(t, err)

			stdErr := apperrors.AsStandardError(err)
			assert.Equal(t, tt.expected, stdErr.Code)
			assert.Equal(t, tt.status, stdErr.Metadata["status"])
		})
	}
}

func TestClient_CreateResponse_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `not json`)
	})

	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMalformedResponse, apperrors.AsStandardError(err).Code)
}

func TestClient_CreateResponse_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(&Config{BaseURL: url, APIKey: "k", Timeout: time.Second}, &TestLogger{t: t})
	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "m", Question: "q"})
	require.Error(t, err)

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeServiceUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestClient_JobLifecycle(t *testing.T) {
	var polls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, betaValue, r.Header.Get(betaHeader))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads/runs":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "asst_1", body["assistant_id"])
			thread := body["thread"].(map[string]interface{})
			assert.Len(t, thread["messages"], 1)
			resources := body["tool_resources"].(map[string]interface{})
			assert.NotNil(t, resources["file_search"])
			writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"thread_1","status":"queued"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/runs/run_1":
			if atomic.AddInt32(&polls, 1) < 2 {
				writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"thread_1","status":"in_progress"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"thread_1","status":"completed"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/messages":
			assert.Equal(t, "run_1", r.URL.Query().Get("run_id"))
			assert.Equal(t, "desc", r.URL.Query().Get("order"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, `{"data":[{"id":"msg_1","role":"assistant","content":[{"type":"text","text":{"value":"done","annotations":[]}}]}]}`)

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	run, err := client.CreateThreadAndRun(ctx, RunRequest{AssistantID: "asst_1", Question: "q", IndexID: "vs_1"})
	require.NoError(t, err)
	assert.Equal(t, "thread_1", run.ThreadID)

	run, err = client.GetRun(ctx, run.ThreadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", run.Status)

	run, err = client.GetRun(ctx, run.ThreadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)

	msg, err := client.LatestMessage(ctx, run.ThreadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", msg["id"])
}

func TestClient_LatestMessage_Empty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[]}`)
	})

	_, err := client.LatestMessage(context.Background(), "t", "r")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMalformedResponse, apperrors.AsStandardError(err).Code)
}

func TestClient_LookupFilename(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/file-1":
			writeJSON(w, http.StatusOK, `{"id":"file-1","filename":"manual.pdf"}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":{"message":"No such File object"}}`)
		}
	})

	name, err := client.LookupFilename(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", name)

	_, err = client.LookupFilename(context.Background(), "file-2")
	assert.Error(t, err)
}

func TestClient_ListFiles_Paginates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vector_stores/vs_1/files":
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			if r.URL.Query().Get("after") == "" {
				writeJSON(w, http.StatusOK, `{"data":[{"id":"f1"},{"id":"f2"}],"has_more":true,"last_id":"f2"}`)
				return
			}
			assert.Equal(t, "f2", r.URL.Query().Get("after"))
			writeJSON(w, http.StatusOK, `{"data":[{"id":"f3"}],"has_more":false}`)
		case "/files/f1":
			writeJSON(w, http.StatusOK, `{"id":"f1","filename":"a.pdf"}`)
		case "/files/f2":
			writeJSON(w, http.StatusNotFound, `{"error":{"message":"gone"}}`)
		case "/files/f3":
			writeJSON(w, http.StatusOK, `{"id":"f3","filename":"c.pdf"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	files, err := client.ListFiles(context.Background(), "vs_1")
	require.NoError(t, err)
	assert.Equal(t, []IndexFile{{ID: "f1", Filename: "a.pdf"}, {ID: "f3", Filename: "c.pdf"}}, files)
}

func TestClient_UploadFile_Multipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "assistants", r.FormValue("purpose"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "guide.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4 test", string(content))

		writeJSON(w, http.StatusOK, `{"id":"file-9","filename":"guide.pdf"}`)
	})

	id, err := client.UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file-9", id)
}

func TestClient_IndexManagement(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.Method + " " + r.URL.Path {
		case "POST /vector_stores":
			writeJSON(w, http.StatusOK, `{"id":"vs_new","name":"docs"}`)
		case "POST /vector_stores/vs_new/file_batches":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []interface{}{"f1", "f2"}, body["file_ids"])
			writeJSON(w, http.StatusOK, `{"id":"batch_1","status":"in_progress"}`)
		case "GET /vector_stores/vs_new/file_batches/batch_1":
			writeJSON(w, http.StatusOK, `{"id":"batch_1","status":"completed","file_counts":{"completed":2,"total":2}}`)
		case "DELETE /vector_stores/vs_new/files/f0":
			writeJSON(w, http.StatusOK, `{"id":"f0","deleted":true}`)
		case "POST /assistants/asst_1":
			writeJSON(w, http.StatusOK, `{"id":"asst_1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	id, err := client.CreateIndex(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "vs_new", id)

	batch, err := client.AttachFiles(ctx, id, []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, "in_progress", batch.Status)

	batch, err = client.GetFileBatch(ctx, id, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.FileCounts.Completed)

	require.NoError(t, client.RemoveFile(ctx, id, "f0"))
	require.NoError(t, client.AttachIndexToAssistant(ctx, "asst_1", id))
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

// internal/chat/strategy/strategy_test.go
package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/chat/clock"
	"answer-gateway/internal/chat/poller"
	"answer-gateway/internal/common/config"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/completion"
	"answer-gateway/internal/models"
)

func newCompletionClient(t *testing.T, handler http.HandlerFunc) *completion.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return completion.NewClient(&completion.Config{
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}, logger.NewTestLogger(t))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newFakePoller(t *testing.T) (*poller.Poller, *clock.Fake) {
	clk := clock.NewFake(time.Unix(0, 0))
	return poller.New(700*time.Millisecond, 60*time.Second, clk, logger.NewTestLogger(t)), clk
}

func TestSynchronous_Attempt(t *testing.T) {
	client := newCompletionClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "model-a", body["model"])
		assert.NotNil(t, body["tools"])
		writeJSON(w, http.StatusOK, `{"output_text":"hello"}`)
	})

	s := NewSynchronous(Spec{Name: "grounded-sync", Model: "model-a", IndexID: "vs_1"}, client)
	assert.True(t, s.Grounded())
	assert.Equal(t, KindSynchronous, s.Kind())

	out := s.Attempt(context.Background(), models.Query{Text: "hi"})
	require.True(t, out.Succeeded())
	assert.Equal(t, "hello", out.Raw["output_text"])
}

func TestSynchronous_Attempt_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   attempt.Kind
		code   apperrors.ErrorCode
	}{
		{"unsupported tool", 400, `{"error":{"code":"unknown_parameter","param":"tools"}}`, attempt.KindUnsupportedFeature, apperrors.ErrCodeUnsupportedFeature},
		{"rate limited", 429, `{"error":{"code":"rate_limit_exceeded"}}`, attempt.KindTransientFailure, apperrors.ErrCodeRateLimited},
		{"quota", 429, `{"error":{"code":"insufficient_quota"}}`, attempt.KindFatalFailure, apperrors.ErrCodeInsufficientQuota},
		{"server", 503, `oops`, attempt.KindTransientFailure, apperrors.ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newCompletionClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			out := NewSynchronous(Spec{Model: "m"}, client).Attempt(context.Background(), models.Query{Text: "q"})
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.code, out.Code())
		})
	}
}

func TestJobBased_Attempt_Completes(t *testing.T) {
	var polls int32
	client := newCompletionClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads/runs":
			writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"queued"}`)
		case r.URL.Path == "/threads/th_1/runs/run_1":
			if atomic.AddInt32(&polls, 1) < 3 {
				writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"in_progress"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"completed"}`)
		case r.URL.Path == "/threads/th_1/messages":
			assert.Equal(t, "run_1", r.URL.Query().Get("run_id"))
			writeJSON(w, http.StatusOK, `{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"job answer","annotations":[]}}]}]}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	p, clk := newFakePoller(t)
	s := NewJobBased(Spec{Name: "grounded-job", Model: "m", AssistantID: "asst_1", IndexID: "vs_1"}, client, p)
	out := s.Attempt(context.Background(), models.Query{Text: "q"})

	require.True(t, out.Succeeded(), "outcome: %+v", out.Err)
	assert.Equal(t, KindJobBased, s.Kind())
	assert.Len(t, clk.Sleeps(), 3)

	content := out.Raw["content"].([]interface{})
	assert.Len(t, content, 1)
}

func TestJobBased_Attempt_NoAssistantIsUnsupported(t *testing.T) {
	p, _ := newFakePoller(t)
	s := NewJobBased(Spec{Name: "grounded-job", Model: "m"}, nil, p)

	out := s.Attempt(context.Background(), models.Query{Text: "q"})
	assert.Equal(t, attempt.KindUnsupportedFeature, out.Kind)
}

func TestJobBased_Attempt_FailedRunClassified(t *testing.T) {
	tests := []struct {
		name    string
		lastErr string
		kind    attempt.Kind
		code    apperrors.ErrorCode
	}{
		{"rate limited run", `{"code":"rate_limit_exceeded","message":"slow down"}`, attempt.KindTransientFailure, apperrors.ErrCodeRateLimited},
		{"server error run", `{"code":"server_error","message":"boom"}`, attempt.KindTransientFailure, apperrors.ErrCodeServiceUnavailable},
		{"invalid prompt", `{"code":"invalid_prompt","message":"no"}`, attempt.KindFatalFailure, apperrors.ErrCodeJobFailed},
		{"no reason", `null`, attempt.KindFatalFailure, apperrors.ErrCodeJobFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newCompletionClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"queued"}`)
					return
				}
				writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"failed","last_error":`+tt.lastErr+`}`)
			})

			p, _ := newFakePoller(t)
			out := NewJobBased(Spec{AssistantID: "asst_1"}, client, p).Attempt(context.Background(), models.Query{Text: "q"})
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.code, out.Code())
		})
	}
}

func TestJobBased_Attempt_TimesOut(t *testing.T) {
	client := newCompletionClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"run_1","thread_id":"th_1","status":"in_progress"}`)
	})

	p, clk := newFakePoller(t)
	out := NewJobBased(Spec{AssistantID: "asst_1"}, client, p).Attempt(context.Background(), models.Query{Text: "q"})

	assert.Equal(t, attempt.KindTransientFailure, out.Kind)
	assert.Equal(t, apperrors.ErrCodePollTimeout, out.Code())
	elapsed := clk.Now().Sub(time.Unix(0, 0))
	assert.GreaterOrEqual(t, elapsed, 60*time.Second)
	assert.LessOrEqual(t, elapsed, 60*time.Second+700*time.Millisecond)
}

func TestRunStatus(t *testing.T) {
	tests := map[string]poller.Status{
		"queued":          poller.StatusQueued,
		"in_progress":     poller.StatusRunning,
		"cancelling":      poller.StatusRunning,
		"requires_action": poller.StatusFailed,
		"incomplete":      poller.StatusFailed,
		"failed":          poller.StatusFailed,
		"cancelled":       poller.StatusCancelled,
		"expired":         poller.StatusExpired,
		"completed":       poller.StatusCompleted,
	}
	for in, want := range tests {
		assert.Equal(t, want, runStatus(in), in)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Completion: config.CompletionConfig{
			PrimaryModel:       "gpt-primary",
			SecondaryModel:     "gpt-secondary",
			IndexID:            "vs_1",
			AssistantID:        "asst_1",
			SystemInstructions: "be brief",
		},
		Strategies: config.DefaultStrategies(),
	}
	p, _ := newFakePoller(t)

	strategies, skipped := FromConfig(cfg, nil, p)
	require.Len(t, strategies, 4)
	assert.Empty(t, skipped)

	assert.Equal(t, "grounded-sync-primary", strategies[0].Name())
	assert.True(t, strategies[0].Grounded())
	assert.Equal(t, KindJobBased, strategies[1].Kind())
	assert.True(t, strategies[1].Grounded())
	assert.False(t, strategies[2].Grounded())
	assert.Equal(t, "gpt-primary", strategies[2].Model())
	assert.Equal(t, "gpt-secondary", strategies[3].Model())
}

func TestFromConfig_SkipsGroundedWithoutIndex(t *testing.T) {
	cfg := &config.Config{
		Completion: config.CompletionConfig{PrimaryModel: "gpt-primary", SecondaryModel: "gpt-secondary"},
		Strategies: config.DefaultStrategies(),
	}
	p, _ := newFakePoller(t)

	strategies, skipped := FromConfig(cfg, nil, p)
	require.Len(t, strategies, 2)
	assert.Equal(t, []string{"grounded-sync-primary", "grounded-job-primary"}, skipped)
	for _, s := range strategies {
		assert.False(t, s.Grounded())
	}
}

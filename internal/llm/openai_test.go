package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, maxAttempts int) (*openAIClient, *[]time.Duration) {
	var slept []time.Duration
	c := &openAIClient{
		apiKey:      "test-key",
		baseURL:     baseURL,
		model:       "test-model",
		temperature: 0.2,
		timeout:     5 * time.Second,
		maxAttempts: maxAttempts,
		retryDelay:  2 * time.Second,
		httpClient:  &http.Client{},
		sleep:       func(d time.Duration) { slept = append(slept, d) },
	}
	return c, &slept
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + jsonString(content) + `}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAIGenerateContent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			w.Write([]byte(completionBody(`{"plan":[]}`)))
		}))
		defer srv.Close()

		client, slept := newTestClient(srv.URL, 3)
		resp, err := client.GenerateContent(context.Background(), "prompt")
		require.NoError(t, err)
		require.Equal(t, `{"plan":[]}`, resp.Content)
		require.Equal(t, 1, resp.Attempts)
		require.Equal(t, "test-model", resp.Model)
		require.Empty(t, *slept)
	})

	t.Run("RetriesAfterRateLimit", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(completionBody("ok")))
		}))
		defer srv.Close()

		client, slept := newTestClient(srv.URL, 3)
		resp, err := client.GenerateContent(context.Background(), "prompt")
		require.NoError(t, err)
		require.Equal(t, "ok", resp.Content)
		require.Equal(t, 3, resp.Attempts)
		require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
	})

	t.Run("ExhaustsRetriesOnServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client, _ := newTestClient(srv.URL, 3)
		_, err := client.GenerateContent(context.Background(), "prompt")
		require.ErrorIs(t, err, ErrRetryExhausted)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("BadRequestIsNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		client, slept := newTestClient(srv.URL, 3)
		_, err := client.GenerateContent(context.Background(), "prompt")
		require.ErrorIs(t, err, ErrBadRequest)
		require.Equal(t, int32(1), calls.Load())
		require.Empty(t, *slept)
	})

	t.Run("AuthFailureIsNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client, _ := newTestClient(srv.URL, 3)
		_, err := client.GenerateContent(context.Background(), "prompt")
		require.ErrorIs(t, err, ErrBadRequest)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("MissingKeyFailsFast", func(t *testing.T) {
		client, _ := newTestClient("http://127.0.0.1:1", 3)
		client.apiKey = ""
		_, err := client.GenerateContent(context.Background(), "prompt")
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("CancelledContextStopsRetrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		client, slept := newTestClient(srv.URL, 5)
		client.sleep = func(time.Duration) { cancel() }

		_, err := client.GenerateContent(ctx, "prompt")
		require.Error(t, err)
		require.LessOrEqual(t, len(*slept), 1)
	})
}

func TestClassifyStatus(t *testing.T) {
	require.ErrorIs(t, classifyStatus(429, nil), ErrRateLimited)
	require.ErrorIs(t, classifyStatus(500, nil), ErrUnavailable)
	require.ErrorIs(t, classifyStatus(503, nil), ErrUnavailable)
	require.ErrorIs(t, classifyStatus(408, nil), ErrTimeout)
	require.ErrorIs(t, classifyStatus(400, nil), ErrBadRequest)
	require.ErrorIs(t, classifyStatus(401, nil), ErrBadRequest)
}

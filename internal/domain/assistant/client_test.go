package assistant

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestClient_Ask(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{
				"content": {"parts": [{"text": "A meta é "}, {"text": "atingível."}]},
				"groundingMetadata": {"groundingChunks": [
					{"web": {"uri": "https://example.com/a", "title": "Fonte A"}},
					{"web": {}}
				]}
			}]
		}`)
	})

	answer, err := c.Ask(context.Background(), "  Como está o faturamento?  ")
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, []any{map[string]any{"google_search": map[string]any{}}}, gotBody["tools"])

	assert.Equal(t, "A meta é atingível.", answer.Text)
	assert.Equal(t, []Source{{URI: "https://example.com/a", Title: "Fonte A"}}, answer.Sources)
}

func TestClient_AskDegradesToApology(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"no candidates", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"candidates": []}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			answer, err := c.Ask(context.Background(), "pergunta")
			require.NoError(t, err)
			assert.Equal(t, Apology, answer.Text)
			assert.Empty(t, answer.Sources)
			assert.NotNil(t, answer.Sources)
		})
	}
}

func TestClient_AskEmptyQuery(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
	assert.False(t, called)
}

func TestClient_Speak(t *testing.T) {
	t.Run("audio", func(t *testing.T) {
		var gotBody map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1beta/models/gemini-2.5-flash-preview-tts:generateContent", r.URL.Path)
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"candidates": [{"content": {"parts": [{"inlineData": {"mimeType": "audio/L16;rate=24000", "data": "AAEC"}}]}}]}`)
		})

		speech, err := c.Speak(context.Background(), "Parabéns pela meta!")
		require.NoError(t, err)
		assert.Equal(t, &Speech{MimeType: "audio/L16;rate=24000", Data: "AAEC"}, speech)

		cfg := gotBody["generationConfig"].(map[string]any)
		assert.Equal(t, []any{"AUDIO"}, cfg["responseModalities"])
		contents := gotBody["contents"].([]any)
		text := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"]
		assert.Equal(t, "Diga isto em um tom encorajador: Parabéns pela meta!", text)
	})

	t.Run("no audio", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"candidates": [{"content": {"parts": [{"text": "oops"}]}}]}`)
		})

		_, err := c.Speak(context.Background(), "olá")
		assert.ErrorIs(t, err, common.ErrUpstream)
	})

	t.Run("upstream failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := c.Speak(context.Background(), "olá")
		assert.ErrorIs(t, err, common.ErrUpstream)
	})
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, slog.Default())
	assert.Error(t, err)
}

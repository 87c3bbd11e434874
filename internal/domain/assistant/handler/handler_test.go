package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/assistant"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

type fakeAssistant struct {
	speakErr error
}

func (fakeAssistant) Ask(_ context.Context, query string) (*assistant.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.ErrInvalidRequest
	}
	return &assistant.Answer{Text: "resposta: " + query, Sources: []assistant.Source{{URI: "https://example.com", Title: "Ex"}}}, nil
}

func (f fakeAssistant) Speak(context.Context, string) (*assistant.Speech, error) {
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	return &assistant.Speech{MimeType: "audio/L16;rate=24000", Data: "AAEC"}, nil
}

func serve(client Assistant, path, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewAssistantHandler(client, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(r.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAssistantHandler(t *testing.T) {
	tests := []struct {
		name       string
		client     Assistant
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "ask",
			client:     fakeAssistant{},
			path:       "/api/assistant/ask",
			body:       `{"query":"meta"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"text":"resposta: meta","sources":[{"uri":"https://example.com","title":"Ex"}]}`,
		},
		{
			name:       "empty query",
			client:     fakeAssistant{},
			path:       "/api/assistant/ask",
			body:       `{"query":" "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Requisição inválida."}`,
		},
		{
			name:       "not configured",
			client:     nil,
			path:       "/api/assistant/ask",
			body:       `{"query":"meta"}`,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"error":"Integração não configurada no servidor."}`,
		},
		{
			name:       "speech",
			client:     fakeAssistant{},
			path:       "/api/assistant/speech",
			body:       `{"text":"parabéns"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"mimeType":"audio/L16;rate=24000","data":"AAEC"}`,
		},
		{
			name:       "speech upstream failure",
			client:     fakeAssistant{speakErr: fmt.Errorf("%w: status 429", common.ErrUpstream)},
			path:       "/api/assistant/speech",
			body:       `{"text":"parabéns"}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Serviço externo indisponível no momento."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.client, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

// Package assistant answers free-form questions through Gemini with Google
// Search grounding, and turns short texts into speech.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com"
	DefaultModel       = "gemini-2.5-flash"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"

	speechVoice  = "Kore"
	speechPrompt = "Diga isto em um tom encorajador: "
	timeout      = 30 * time.Second
)

// Apology is returned in place of an answer when the model cannot be reached.
const Apology = "Desculpe, não consegui obter uma resposta. Por favor, tente novamente."

// Source is one web page the answer was grounded on.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Answer is the model's text plus its grounding sources.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Speech is base64 encoded audio as returned by the model.
type Speech struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Config holds the Gemini settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	SpeechModel string
}

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	http        *resty.Client
	model       string
	speechModel string
	logger      *slog.Logger
}

// NewClient creates a configured Gemini client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("x-goog-api-key", cfg.APIKey).
		SetHeader("content-type", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:        httpClient,
		model:       cfg.Model,
		speechModel: cfg.SpeechModel,
		logger:      logger,
	}, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	Tools            []map[string]any  `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web Source `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// Ask answers query with Google Search grounding. Upstream failures are
// logged and answered with Apology; only an empty query is an error.
func (c *Client) Ask(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty question", common.ErrInvalidRequest)
	}

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: query}}}},
		Tools:    []map[string]any{{"google_search": map[string]any{}}},
	}

	resp, err := c.generate(ctx, c.model, req)
	if err != nil {
		c.logger.Warn("grounded answer failed", slog.Any("error", err))
		return &Answer{Text: Apology, Sources: []Source{}}, nil
	}

	answer := &Answer{Sources: []Source{}}
	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}
	answer.Text = text.String()

	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if chunk.Web.URI == "" {
			continue
		}
		answer.Sources = append(answer.Sources, chunk.Web)
	}

	return answer, nil
}

// Speak renders text as speech in an encouraging tone.
func (c *Client) Speak(ctx context.Context, text string) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", common.ErrInvalidRequest)
	}

	cfg := &generationConfig{ResponseModalities: []string{"AUDIO"}, SpeechConfig: &speechConfig{}}
	cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = speechVoice

	resp, err := c.generate(ctx, c.speechModel, generateRequest{
		Contents:         []content{{Parts: []part{{Text: speechPrompt + text}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return nil, err
	}

	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].InlineData == nil || parts[0].InlineData.Data == "" {
		return nil, fmt.Errorf("%w: response carried no audio", common.ErrUpstream)
	}
	return &Speech{MimeType: parts[0].InlineData.MimeType, Data: parts[0].InlineData.Data}, nil
}

func (c *Client) generate(ctx context.Context, model string, body generateRequest) (*generateResponse, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetBody(body).
		SetResult(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return nil, fmt.Errorf("%w: gemini call: %w", common.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: gemini status %d: %s", common.ErrUpstream, resp.StatusCode(), resp.String())
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", common.ErrUpstream)
	}
	return &out, nil
}

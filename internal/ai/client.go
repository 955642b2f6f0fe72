// Package ai wraps the four remote Gemini operations the app depends on:
// summarize, rewrite, synthesize speech, transcribe speech. Transport and
// response handling live in Client; the single-flight policy lives in
// Orchestrator.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/fault"
)

// ClientConfig carries the connection and model parameters.
type ClientConfig struct {
	APIURL     string
	APIKey     string
	TextModel  string
	TTSModel   string
	TTSVoice   string
	SampleRate int // rate of the raw PCM the TTS model returns
}

// Client talks to the Gemini generateContent REST API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(cfg ClientConfig) *Client {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.PlaybackSampleRate
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 120 * time.Second, // TTS on a long note takes a while
		},
	}
}

// --- wire types (generateContent request/response) ---

type generateRequest struct {
	Contents         []content  `json:"contents"`
	GenerationConfig *genConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type genConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// generate posts a request to the named model and decodes the response.
// Every failure mode comes back as a single uniform AI error.
func (c *Client) generate(ctx context.Context, model string, req generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fault.AI(err, "marshal request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.APIURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fault.AI(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fault.AI(err, "AI request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fault.AI(nil, "AI service status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fault.AI(err, "decode response")
	}
	if result.Error != nil {
		return nil, fault.AI(nil, "AI service error (code %d): %s", result.Error.Code, result.Error.Message)
	}
	return &result, nil
}

// firstText pulls the first text part out of a response.
func firstText(resp *generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return strings.TrimSpace(p.Text)
			}
		}
	}
	return ""
}

// firstAudio pulls the first inline audio payload out of a response.
func firstAudio(resp *generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData.Data
			}
		}
	}
	return ""
}

// Summarize produces a one-sentence summary of the note text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	resp, err := c.generate(ctx, c.cfg.TextModel, generateRequest{
		Contents: []content{{Parts: []part{{
			Text: "Summarize the following note in one concise sentence: " + text,
		}}}},
	})
	if err != nil {
		return "", err
	}
	out := firstText(resp)
	if out == "" {
		return "", fault.AI(nil, "empty summary response")
	}
	return out, nil
}

// Rewrite applies a free-form editing instruction to the note text and
// returns the improved text.
func (c *Client) Rewrite(ctx context.Context, text, instruction string) (string, error) {
	if text == "" {
		return "", nil
	}
	prompt := fmt.Sprintf(
		"You are an expert editor. Current note: %q. Instruction: %s. Return only the improved text.",
		text, instruction,
	)
	resp, err := c.generate(ctx, c.cfg.TextModel, generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	out := firstText(resp)
	if out == "" {
		return "", fault.AI(nil, "empty rewrite response")
	}
	return out, nil
}

// Synthesize converts text to speech. The model returns raw s16le PCM,
// base64-encoded, at the configured sample rate.
func (c *Client) Synthesize(ctx context.Context, text string) (*audio.Buffer, error) {
	resp, err := c.generate(ctx, c.cfg.TTSModel, generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &genConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: c.cfg.TTSVoice},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	b64 := firstAudio(resp)
	if b64 == "" {
		return nil, fault.AI(nil, "no audio data received")
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fault.AI(err, "decode audio payload")
	}
	buf, err := audio.DecodePCM(pcm, c.cfg.SampleRate)
	if err != nil {
		return nil, fault.AI(err, "unusable audio payload")
	}
	return buf, nil
}

// Transcribe converts captured audio to text.
func (c *Client) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := c.generate(ctx, c.cfg.TextModel, generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
			{Text: "Transcribe the audio exactly. Please include proper punctuation and capitalization."},
		}}},
	})
	if err != nil {
		return "", err
	}
	out := firstText(resp)
	if out == "" {
		return "", fault.AI(nil, "empty transcription response")
	}
	return out, nil
}

// Probe checks whether the API endpoint is reachable. Non-fatal: a dead
// endpoint only degrades the AI features, never the notes themselves.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.APIURL+"/v1beta/models", nil)
	if err != nil {
		return false
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

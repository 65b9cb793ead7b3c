package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Hugging Face text-generation request and response ---

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequestBody struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type HuggingFace struct {
	url   string
	token string
	http  *http.Client
}

func NewHuggingFace(url, token string, timeout time.Duration) *HuggingFace {
	return &HuggingFace{url: url, token: token, http: &http.Client{Timeout: timeout}}
}

func (h *HuggingFace) Enabled() bool { return h.token != "" }

// Generate runs an instruct prompt and returns the generated text.
func (h *HuggingFace) Generate(ctx context.Context, system, user string) (string, error) {
	if !h.Enabled() {
		return "", ErrLLMDisabled
	}
	body := hfRequestBody{
		Inputs: fmt.Sprintf("<s>[INST] %s \n\n User: %s [/INST]", system, user),
		Parameters: hfParameters{
			MaxNewTokens: 250,
			Temperature:  0.7,
		},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("hugging face request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, Message: string(respBody)}
	}

	var out []hfGeneration
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode hugging face response: %w", err)
	}
	if len(out) == 0 || out[0].GeneratedText == "" {
		return "", fmt.Errorf("hugging face returned an empty generation")
	}
	return out[0].GeneratedText, nil
}

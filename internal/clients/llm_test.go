package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHuggingFaceGenerate(t *testing.T) {
	var inputs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body hfRequestBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		inputs = body.Inputs
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":"Please rest and stay hydrated."}]`))
	}))
	defer srv.Close()

	hf := NewHuggingFace(srv.URL, "hf_test", time.Second)
	got, err := hf.Generate(context.Background(), "You are HealAI", "I have a fever")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Please rest and stay hydrated." {
		t.Errorf("reply = %q", got)
	}
	if !strings.HasPrefix(inputs, "<s>[INST] You are HealAI") || !strings.HasSuffix(inputs, "User: I have a fever [/INST]") {
		t.Errorf("prompt = %q", inputs)
	}

	if _, err := NewHuggingFace(srv.URL, "", time.Second).Generate(context.Background(), "", "hi"); !errors.Is(err, ErrLLMDisabled) {
		t.Errorf("no token err = %v", err)
	}
	if _, err := NewHuggingFace(srv.URL, "wrong", time.Second).Generate(context.Background(), "", "hi"); err == nil {
		t.Error("expected upstream error")
	}
}

func TestGroqComplete(t *testing.T) {
	var req struct {
		Model          string `json:"model"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"llama-3.3-70b-versatile",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"intent\":\"greeting\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewGroq("gsk_test", srv.URL, "llama-3.3-70b-versatile", time.Second)
	got, err := g.Complete(context.Background(), []Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "hi"},
	}, CompletionOptions{JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"intent":"greeting"}` {
		t.Errorf("content = %q", got)
	}
	if req.Model != "llama-3.3-70b-versatile" || len(req.Messages) != 2 || req.Messages[1].Content != "hi" {
		t.Errorf("request = %+v", req)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Errorf("response format = %+v", req.ResponseFormat)
	}

	if _, err := NewGroq("", srv.URL, "m", time.Second).Complete(context.Background(), nil, CompletionOptions{}); !errors.Is(err, ErrLLMDisabled) {
		t.Errorf("no key err = %v", err)
	}
}

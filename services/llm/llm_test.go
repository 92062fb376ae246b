// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

// newMockOpenAIServer serves /v1/chat/completions with a fixed reply and
// hands every decoded request body to inspect.
func newMockOpenAIServer(t *testing.T, reply string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if inspect != nil {
			inspect(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAIClient(t *testing.T, srv *httptest.Server, rpm int) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:            "test-key",
		Model:             "test-model",
		BaseURL:           srv.URL + "/v1",
		SystemPrompt:      "You are a loadout planner.",
		RequestsPerMinute: rpm,
	})
	require.NoError(t, err)
	return c
}

// =============================================================================
// OpenAI
// =============================================================================

func TestNewOpenAIClient_NoKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewOpenAIClient_SecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openai_api_key")
	require.NoError(t, os.WriteFile(path, []byte("sk-from-file\n"), 0600))

	c, err := NewOpenAIClient(OpenAIConfig{SecretPath: path})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.model)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]any
	srv := newMockOpenAIServer(t, `{"loadout":{}}`, func(body map[string]any) { got = body })
	c := newTestOpenAIClient(t, srv, 0)

	out, err := c.Generate(context.Background(), "build me a loadout", GenerationParams{
		Temperature: Float32(0.7),
		MaxTokens:   Int(800),
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"loadout":{}}`, out)

	require.NotNil(t, got)
	assert.Equal(t, "test-model", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 0.001)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "build me a loadout", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClient_PlainTextOmitsResponseFormat(t *testing.T) {
	var got map[string]any
	srv := newMockOpenAIServer(t, "hello", func(body map[string]any) { got = body })
	c := newTestOpenAIClient(t, srv, 0)

	_, err := c.Generate(context.Background(), "hi", GenerationParams{})
	require.NoError(t, err)
	_, present := got["response_format"]
	assert.False(t, present)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()
	c := newTestOpenAIClient(t, srv, 0)

	_, err := c.Generate(context.Background(), "hi", GenerationParams{})
	assert.Error(t, err)
}

func TestOpenAIClient_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := newMockOpenAIServer(t, "ok", func(map[string]any) { calls.Add(1) })
	c := newTestOpenAIClient(t, srv, 1)

	_, err := c.Generate(context.Background(), "first", GenerationParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, "second", GenerationParams{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// =============================================================================
// Ollama
// =============================================================================

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	_, err := NewOllamaClient(OllamaConfig{})
	assert.Error(t, err)
}

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"{\"ok\":true}","done":true}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(OllamaConfig{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "prompt", GenerationParams{
		Temperature: Float32(0.85),
		TopK:        Int(40),
		MaxTokens:   Int(1500),
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	assert.EqualValues(t, 40, got.Options["top_k"])
	assert.EqualValues(t, 1500, got.Options["num_predict"])
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "nope"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "prompt", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull nope")
}

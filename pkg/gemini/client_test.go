package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, text string, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if check != nil {
			check(body)
		}

		parts := []map[string]any{}
		if text != "" {
			parts = append(parts, map[string]any{"text": text})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": parts},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     300,
				"candidatesTokenCount": 50,
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestGenerate(t *testing.T) {
	ts := geminiServer(t, `{"questions":[]}`, func(body map[string]any) {
		cfg := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", cfg["responseMimeType"])
		assert.InDelta(t, 0.7, cfg["temperature"], 0.001)
		assert.InDelta(t, 800, cfg["maxOutputTokens"], 0)

		system := body["systemInstruction"].(map[string]any)
		assert.NotEmpty(t, system["parts"])

		contents := body["contents"].([]any)
		require.Len(t, contents, 2)
		assert.Equal(t, "user", contents[0].(map[string]any)["role"])
		assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	})

	client, err := NewClient(context.Background(), "test-key", ts.URL)
	require.NoError(t, err)

	temp := 0.7
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Model:       "gemini-2.5-flash",
		System:      "Erstelle Fragen.",
		Messages:    []Message{{Role: "user", Content: "Thema: Kredit"}, {Role: "assistant", Content: "ok"}},
		Temperature: &temp,
		MaxTokens:   800,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"questions":[]}`, resp.Text)
	assert.Equal(t, int64(300), resp.InputTokens)
	assert.Equal(t, int64(50), resp.OutputTokens)
}

func TestGenerate_Empty(t *testing.T) {
	ts := geminiServer(t, "", nil)

	client, err := NewClient(context.Background(), "test-key", ts.URL)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), GenerateRequest{
		Model:    "gemini-2.5-flash",
		Messages: []Message{{Role: "user", Content: "Hallo"}},
	})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestToContents(t *testing.T) {
	out := toContents([]Message{{Role: "assistant", Content: "a"}, {Role: "user", Content: "b"}})
	require.Len(t, out, 2)
	assert.Equal(t, "model", string(out[0].Role))
	assert.Equal(t, "user", string(out[1].Role))
	assert.Equal(t, "a", out[0].Parts[0].Text)
}

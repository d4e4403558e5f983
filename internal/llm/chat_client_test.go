package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nova-micro", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"strategy: balanced"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL+"/v1/", "test-key", "nova-micro", WithHTTPClient(srv.Client()))
	reply, err := c.Generate(context.Background(), "decide a strategy", "item=Aspirin urgency=medium")
	require.NoError(t, err)
	assert.Equal(t, "strategy: balanced", reply)
	assert.Equal(t, "nova-micro", c.ModelName())
}

func TestChatClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "nova-micro", WithHTTPClient(srv.Client()))
	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "nova-micro", WithHTTPClient(srv.Client()))
	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestRuleBasedGenerate(t *testing.T) {
	g := NewRuleBased()

	reply, err := g.Generate(context.Background(), "Return ONLY a JSON object with reasoning scores", "agent input")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply), &decoded))
	assert.Contains(t, decoded, "logic_score")

	again, err := g.Generate(context.Background(), "Return ONLY a JSON object with reasoning scores", "agent input")
	require.NoError(t, err)
	assert.Equal(t, reply, again, "rule-based output must be deterministic")

	prose, err := g.Generate(context.Background(), "decide a strategy", "urgency high\nmore detail")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prose, "Assessment: "))
	assert.NotContains(t, prose, "\n")
}

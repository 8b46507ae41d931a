package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Sure, happy to help."}}]}`))
	}))
	defer srv.Close()

	gen := &OpenAI{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-4o-mini"}
	out, err := gen.Generate(context.Background(), "You are a sales assistant.", []ChatMessage{
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Sure, happy to help." {
		t.Fatalf("response = %q", out)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "You are a sales assistant." {
		t.Fatalf("system message = %v", first)
	}
}

func TestOpenAIGenerateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusServiceUnavailable, `{}`, "returned 503"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad json", http.StatusOK, `{{{`, "invalid character"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			gen := &OpenAI{BaseURL: srv.URL, APIKey: "k"}
			_, err := gen.Generate(context.Background(), "sys", nil)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestStaticGenerate(t *testing.T) {
	t.Parallel()
	out, err := Static{Response: "fixed"}.Generate(context.Background(), "sys", nil)
	if err != nil || out != "fixed" {
		t.Fatalf("Generate = %q, %v", out, err)
	}

	out, err = Static{}.Generate(context.Background(), "sys", nil)
	if err != nil || out == "" {
		t.Fatalf("default response = %q, %v", out, err)
	}

	if _, err := (Static{Err: context.DeadlineExceeded}).Generate(context.Background(), "sys", nil); err == nil {
		t.Fatal("expected error passthrough")
	}
}

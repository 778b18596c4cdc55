package utils

import (
	"strings"
	"testing"
)

type narrative struct {
	Headline string   `json:"headline"`
	Risks    []string `json:"risks"`
}

func TestSmartParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy string
	}{
		{"strict", `{"headline":"ok","risks":["a"]}`, "json"},
		{"fenced with trailing comma", "```json\n{\"headline\": \"ok\", \"risks\": [\"a\",],}\n```", "repair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n narrative
			got, err := SmartParse(tt.input, &n)
			if err != nil {
				t.Fatalf("SmartParse: %v", err)
			}
			if got != tt.strategy {
				t.Errorf("strategy = %q, want %q", got, tt.strategy)
			}
			if n.Headline != "ok" || len(n.Risks) != 1 {
				t.Errorf("decoded %+v", n)
			}
		})
	}
}

func TestParseHJSON(t *testing.T) {
	src := []byte(`{
  # analyst consensus
  growth: [0.12, 0.10]
  smooth_to_stable: true
}`)
	var v struct {
		Growth []float64 `json:"growth"`
		Smooth bool      `json:"smooth_to_stable"`
	}
	if err := ParseHJSON(src, &v); err != nil {
		t.Fatalf("ParseHJSON: %v", err)
	}
	if len(v.Growth) != 2 || v.Growth[1] != 0.10 || !v.Smooth {
		t.Errorf("decoded %+v", v)
	}

	if err := ParseHJSON([]byte("{ growth: [ "), &v); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		`  {"a":1}  `:             `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	if got := CleanMarkdown("```markdown\n# Title\n```"); got != "# Title" {
		t.Errorf("CleanMarkdown = %q", got)
	}

	html, err := MarkdownToHTML("| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("MarkdownToHTML: %v", err)
	}
	if !strings.Contains(html, "<table>") || !strings.Contains(html, "<td>2</td>") {
		t.Errorf("expected GFM table, got %s", html)
	}
}

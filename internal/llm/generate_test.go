package llm

import (
	"strings"
	"testing"

	"showrunner/internal/core"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  \n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.input); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatArticles(t *testing.T) {
	formatted := formatArticles([]core.Article{
		{
			Title: "First story",
			Classification: core.Classification{
				Summary: "What happened first.",
				Tags:    []string{"breaking", "technology"},
			},
		},
		{Title: "Second story"},
	})

	if !strings.Contains(formatted, "1. First story") {
		t.Errorf("Expected numbered titles, got %q", formatted)
	}
	if !strings.Contains(formatted, "What happened first.") {
		t.Error("Expected the summary to be included")
	}
	if !strings.Contains(formatted, "Tags: breaking, technology") {
		t.Error("Expected the tag line to be included")
	}
	if !strings.Contains(formatted, "2. Second story") {
		t.Error("Expected the second article listed")
	}
}

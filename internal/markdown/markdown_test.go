package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"emphasis", "The invoice is **paid** [Doc1].", []string{"<strong>paid</strong>", "[Doc1]"}},
		{"list", "- one\n- two", []string{"<li>one</li>", "<li>two</li>"}},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"hard wraps", "line one\nline two", []string{"<br>"}},
		{"code", "```go\nfmt.Println(1)\n```", []string{"<pre"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.src)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q missing %q", got, w)
				}
			}
		})
	}
}

func TestRenderDropsRawHTML(t *testing.T) {
	got, err := New().Render("hello <script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML passed through: %q", got)
	}
}

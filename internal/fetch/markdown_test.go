package fetch

import (
	"strings"
	"testing"
)

func TestToMarkdown_TitleHeading(t *testing.T) {
	out := ToMarkdown("Hello World", "Some body text.", 0)
	if !strings.HasPrefix(out, "# Hello World\n\n") {
		t.Fatalf("expected title heading, got %q", out)
	}
	if !strings.Contains(out, "Some body text.") {
		t.Fatalf("body text missing: %q", out)
	}
}

func TestToMarkdown_StripsResidualMarkup(t *testing.T) {
	out := ToMarkdown("", "Before <div class=\"x\">inside</div> after", 0)
	if strings.Contains(out, "<") || strings.Contains(out, ">") {
		t.Fatalf("residual markup left in output: %q", out)
	}
	if !strings.Contains(out, "inside") {
		t.Fatalf("tag contents should survive: %q", out)
	}
}

func TestToMarkdown_CollapsesWhitespace(t *testing.T) {
	out := ToMarkdown("", "a   b\t\tc\n\n\n\n\nd", 0)
	if strings.Contains(out, "  ") {
		t.Fatalf("space runs not collapsed: %q", out)
	}
	if strings.Contains(out, "\n\n\n") {
		t.Fatalf("blank line runs not collapsed: %q", out)
	}
}

func TestToMarkdown_Cap(t *testing.T) {
	out := ToMarkdown("", strings.Repeat("word ", 100), 40)
	if len(out) > 40 {
		t.Fatalf("cap exceeded: %d chars", len(out))
	}
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}

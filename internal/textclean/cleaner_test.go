package textclean

import (
	"context"
	"testing"
	"time"
)

func TestCleaner_Clean(t *testing.T) {
	c := NewCleaner()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bold", "**Sure** - here's the plan:", "Sure - here's the plan:"},
		{"italic asterisk", "this is *important* now", "this is important now"},
		{"italic underscore", "_quiet_ voice", "quiet voice"},
		{"bare url", "see https://example.com/docs", "see link"},
		{"markdown link", "read [the docs](https://example.com/docs) first", "read the docs first"},
		{"inline code", "run `go build` now", "run go build now"},
		{"code fence", "```\nfunc main() {}\n```", ""},
		{"code fence with text", "before ```x := 1``` after", "before after"},
		{"heading", "## Plan\nDo it", "Plan Do it"},
		{"bullet list", "- one\n- two", "one two"},
		{"numbered list", "1. first\n2. second", "first second"},
		{"bracketed direction", "[pauses] well", "well"},
		{"spoken direction", "(laughs) sure", "sure"},
		{"unlisted parenthetical kept", "(thinking) sure", "(thinking) sure"},
		{"whitespace collapse", "a   b\n\n c", "a b c"},
		{"empty", "", ""},
		{"plain text untouched", "nothing to change here", "nothing to change here"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Clean(tc.input); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCleaner_LinkLabelBeforeBareURL(t *testing.T) {
	c := NewCleaner()

	// The link label wins; the wrapped URL must not surface as "link"
	got := c.Clean("[click here](https://a.example)")
	if got != "click here" {
		t.Errorf("Expected 'click here', got %q", got)
	}
}

func TestCleaner_PureMarkupCleansToEmpty(t *testing.T) {
	c := NewCleaner()

	for _, input := range []string{"```drop this```", "[bracketed]", "   ", "(sighs)"} {
		if got := c.Clean(input); got != "" {
			t.Errorf("Expected empty result for %q, got %q", input, got)
		}
	}
}

func TestCleaner_AddRule(t *testing.T) {
	c := NewCleaner()

	if err := c.AddRule(`\bfoo\b`, "bar"); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}

	if got := c.Clean("foo and **foo**"); got != "bar and bar" {
		t.Errorf("Expected 'bar and bar', got %q", got)
	}
}

func TestCleaner_AddRuleInvalidPattern(t *testing.T) {
	c := NewCleaner()

	if err := c.AddRule("(", "x"); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestNewCleanerWithRules(t *testing.T) {
	c := NewCleanerWithRules(nil)

	// No rules means only whitespace normalization
	if got := c.Clean("  **still**   bold  "); got != "**still** bold" {
		t.Errorf("Expected markup preserved, got %q", got)
	}
}

func TestClean_PackageDefault(t *testing.T) {
	if got := Clean("**hi**"); got != "hi" {
		t.Errorf("Expected 'hi', got %q", got)
	}
}

func TestCleaner_CleanStream(t *testing.T) {
	c := NewCleaner()

	in := make(chan string, 3)
	in <- "**hi**"
	in <- "```dropped```"
	in <- "see https://example.com"
	close(in)

	out := c.CleanStream(context.Background(), in)

	var units []string
	for unit := range out {
		units = append(units, unit)
	}

	expected := []string{"hi", "see link"}
	if len(units) != len(expected) {
		t.Fatalf("Expected %d units, got %d: %v", len(expected), len(units), units)
	}
	for i, want := range expected {
		if units[i] != want {
			t.Errorf("Expected %q at position %d, got %q", want, i, units[i])
		}
	}
}

func TestCleaner_CleanStreamCancel(t *testing.T) {
	c := NewCleaner()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan string)

	out := c.CleanStream(ctx, in)
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("Expected closed channel after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected output channel to close after cancellation")
	}
}

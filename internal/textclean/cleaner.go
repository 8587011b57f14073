// Package textclean normalizes incrementally-produced model text before it is
// handed to a speech synthesizer. Generated text carries markup a synthesizer
// would read out loud, for example:
//   - "**Sure** - here's the plan:" -> "Sure - here's the plan:"
//   - "see https://example.com/docs" -> "see link"
//   - "```\ncode\n```" -> ""
//
// Cleanup is a configurable, ordered list of rewrite rules applied in
// sequence, so later rules see the output of earlier ones.
package textclean

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Rule rewrites text matching a compiled pattern
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Cleaner applies an ordered list of rewrite rules to text units
type Cleaner struct {
	rules []Rule
}

// NewCleaner creates a cleaner with the default synthesizer-prep rules
func NewCleaner() *Cleaner {
	return &Cleaner{rules: defaultRules()}
}

// NewCleanerWithRules creates a cleaner with a custom rule list, applied in
// the given order
func NewCleanerWithRules(rules []Rule) *Cleaner {
	return &Cleaner{rules: rules}
}

// defaultRules returns the stock rewrite pipeline. Order matters: markdown
// links must be unwrapped before bare URLs are replaced.
func defaultRules() []Rule {
	return []Rule{
		// Fenced code blocks carry nothing speakable
		{regexp.MustCompile("(?s)```.*?```"), ""},
		// Inline code keeps its content, loses the backticks
		{regexp.MustCompile("`([^`]*)`"), "$1"},
		// Markdown links speak their label
		{regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`), "$1"},
		// Bare URLs become the word "link"
		{regexp.MustCompile(`https?://\S+`), "link"},
		// Bold and italic markers
		{regexp.MustCompile(`\*{1,2}([^*]+)\*{1,2}`), "$1"},
		{regexp.MustCompile(`_{1,2}([^_]+)_{1,2}`), "$1"},
		// Heading and list markers at line starts
		{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
		{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},
		{regexp.MustCompile(`(?m)^\s*\d+\.\s+`), ""},
		// Bracketed stage directions like [pauses] or (laughs)
		{regexp.MustCompile(`\[[^\]]*\]`), ""},
		{regexp.MustCompile(`\((?:laughs|sighs|pauses|coughs|clears throat)\)`), ""},
	}
}

// AddRule compiles a pattern and appends it to the rule list
func (c *Cleaner) AddRule(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("failed to compile cleanup rule %q: %w", pattern, err)
	}
	c.rules = append(c.rules, Rule{Pattern: re, Replacement: replacement})
	return nil
}

// Clean applies the rules in order and normalizes whitespace. A unit that was
// pure markup cleans to the empty string.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}

	for _, rule := range c.rules {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanStream maps units from in through Clean. Units that clean to the empty
// string are dropped rather than forwarded. The output channel closes when in
// closes or the context is cancelled.
func (c *Cleaner) CleanStream(ctx context.Context, in <-chan string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case unit, ok := <-in:
				if !ok {
					return
				}
				cleaned := c.Clean(unit)
				if cleaned == "" {
					continue
				}
				select {
				case out <- cleaned:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

var defaultCleaner = NewCleaner()

// Clean is a convenience function using the default cleaner
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}

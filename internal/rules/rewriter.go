// Package rules rewrites transcripts with user-defined substitutions.
//
// A rules file holds one rule per line:
//
//	pull request => PR              literal, case-insensitive, whole words
//	s/\bgit hub\b/GitHub/g           sed-style regex with i, g, m, s flags
//
// Blank lines and lines starting with # are ignored.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"holdtalk/internal/ports"
)

// ErrNotConverged is returned when rules keep changing the text after the
// iteration limit. The partially rewritten text is returned alongside it.
var ErrNotConverged = errors.New("rewrite rules did not converge")

const defaultIterationLimit = 30

// Rule rewrites text and reports whether anything changed.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// Parser turns a rules-file line into a Rule.
type Parser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// Rewriter applies rules repeatedly until the text stops changing.
type Rewriter struct {
	rules []Rule
	limit int
}

var _ ports.Rewriter = (*Rewriter)(nil)

// Load reads rules from path. A missing or empty path yields a rewriter that
// returns text unchanged.
func Load(path string, limit int) (*Rewriter, error) {
	return LoadWithParsers(path, limit, DefaultParsers())
}

// LoadWithParsers is Load with a custom parser chain, tried in order.
func LoadWithParsers(path string, limit int, parsers []Parser) (*Rewriter, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil, limit), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil, limit), nil
		}
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer f.Close()

	rules, err := Parse(f, parsers)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return New(rules, limit), nil
}

func New(rules []Rule, limit int) *Rewriter {
	if limit <= 0 {
		limit = defaultIterationLimit
	}
	return &Rewriter{rules: rules, limit: limit}
}

// Len returns the number of loaded rules.
func (r *Rewriter) Len() int {
	return len(r.rules)
}

func (r *Rewriter) Apply(text string) (string, error) {
	if len(r.rules) == 0 {
		return text, nil
	}
	out := text
	for pass := 0; pass < r.limit; pass++ {
		changed := false
		for _, rule := range r.rules {
			if next, ok := rule.Apply(out); ok {
				out = next
				changed = true
			}
		}
		if !changed {
			return out, nil
		}
	}
	return out, fmt.Errorf("%w after %d passes", ErrNotConverged, r.limit)
}

// Parse reads rules from src, one per line.
func Parse(src io.Reader, parsers []Parser) ([]Rule, error) {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	var rules []Rule
	scanner := bufio.NewScanner(src)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseLine(line string, parsers []Parser) (Rule, error) {
	for _, p := range parsers {
		if p.CanParse(line) {
			return p.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// DefaultParsers returns the regex parser followed by the literal parser.
func DefaultParsers() []Parser {
	return []Parser{RegexParser{}, LiteralParser{}}
}

// LiteralParser handles "phrase => replacement".
type LiteralParser struct{}

func (LiteralParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (LiteralParser) Parse(line string) (Rule, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid literal rule")
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}

	// Anchor on word boundaries where the phrase begins or ends with a word
	// character so "cat" does not fire inside "concatenate".
	pattern := regexp.QuoteMeta(from)
	if isWordByte(from[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(from[len(from)-1]) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return replaceRule{re: re, replacement: regexpLiteral(to), global: true}, nil
}

// RegexParser handles sed-style "s/pattern/replacement/flags" with any
// non-alphanumeric delimiter. Matching is case-insensitive.
type RegexParser struct{}

func (RegexParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordByte(line[1]) && line[1] != ' ' && line[1] != '\t'
}

func (RegexParser) Parse(line string) (Rule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]

	pattern, pos, err := scanDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := scanDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}
	replacement = strings.ReplaceAll(replacement, `\`+string(delim), string(delim))

	inline := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return replaceRule{re: re, replacement: replacement, global: global}, nil
}

type replaceRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r replaceRule) Apply(input string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(input, r.replacement)
		return out, out != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	var expanded []byte
	expanded = r.re.ExpandString(expanded, r.replacement, input, loc)
	out := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return out, out != input
}

// scanDelimited reads up to the next unescaped delim. Escapes are kept so
// the regexp compiler sees them; an escaped delimiter in a pattern is a
// literal match since RE2 accepts escaped punctuation.
func scanDelimited(line string, start int, delim byte) (string, int, error) {
	if start > len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}
	var b strings.Builder
	for i := start; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) {
			b.WriteByte(c)
			b.WriteByte(line[i+1])
			i++
			continue
		}
		if c == delim {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

// regexpLiteral escapes $ so literal replacements are not expanded.
func regexpLiteral(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

package signature

import (
	"regexp"
	"strings"
)

// headerPattern matches the entry-point header `<keyword> f ( <arg-list> ) :`.
// The argument list is matched lazily up to the first parenthesis followed by
// a colon, so a default such as max(1, 2) stays inside it.
var headerPattern = regexp.MustCompile(`\b([A-Za-z_]\w*)\s+f\s*\((.*?)\)\s*:`)

// Arg is one raw argument of the entry-point header.
type Arg struct {
	// Name is the trimmed text left of '=' (or the whole argument).
	Name string
	// Default is the trimmed literal right of '='. Empty when HasDefault is false.
	Default    string
	HasDefault bool
}

// Header is the result of scanning a source text for its entry point.
type Header struct {
	Keyword string
	Args    []Arg
	// Start and End are the byte offsets of the whole header match; the body
	// of the entry point starts at End.
	Start int
	End   int
}

// ParseHeader locates the entry-point header with a single textual scan. A
// match inside a '#' comment is not a header. It reports false when the
// source has no header.
func ParseHeader(source string) (*Header, bool) {
	var loc []int
	for _, m := range headerPattern.FindAllStringSubmatchIndex(source, -1) {
		if !inComment(source, m[0]) {
			loc = m
			break
		}
	}
	if loc == nil {
		return nil, false
	}

	h := &Header{
		Keyword: source[loc[2]:loc[3]],
		Start:   loc[0],
		End:     loc[1],
	}
	for _, raw := range splitArgs(source[loc[4]:loc[5]]) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, def, hasDefault := strings.Cut(raw, "=")
		h.Args = append(h.Args, Arg{
			Name:       strings.TrimSpace(name),
			Default:    strings.TrimSpace(def),
			HasDefault: hasDefault,
		})
	}
	return h, true
}

// inComment reports whether offset lies after a '#' on its line.
func inComment(source string, offset int) bool {
	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	return strings.IndexByte(source[lineStart:offset], '#') >= 0
}

// splitArgs splits an argument list on the commas that are not nested inside
// parentheses or brackets.
func splitArgs(list string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, list[start:i])
				start = i + 1
			}
		}
	}
	return append(out, list[start:])
}

// StripComment returns line without its trailing '#' comment.
func StripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// Body returns the source text following the header.
func (h *Header) Body(source string) string {
	return source[h.End:]
}

// Preamble returns the source text preceding the header.
func (h *Header) Preamble(source string) string {
	return source[:h.Start]
}

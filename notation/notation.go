// Package notation parses the record addressing language used to pull a
// single value out of a secret:
//
//	[keeper://]RECORD/SELECTOR[/PARAMETER][[INDEX1]][[INDEX2]]
//
// RECORD is a record UID or title. SELECTOR is one of type, title, notes,
// file, field or custom_field. RECORD and PARAMETER may contain '/', '[',
// ']' and '\' when escaped with a backslash.
//
// Examples:
//
//	keeper://6ya_fdc6XTsZ7i7x9Jcodg/field/password
//	My Login/custom_field/name[0][first]
//	keeper://6ya_fdc6XTsZ7i7x9Jcodg/field/url[]
//	keeper://6ya_fdc6XTsZ7i7x9Jcodg/file/cert.pem
package notation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefix is the optional scheme in front of a notation.
const Prefix = "keeper://"

// Selectors.
const (
	SelectorType        = "type"
	SelectorTitle       = "title"
	SelectorNotes       = "notes"
	SelectorFile        = "file"
	SelectorField       = "field"
	SelectorCustomField = "custom_field"
)

const escapable = `/[]\`

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("notation syntax error")

// Section is one captured part of a notation.
type Section struct {
	Present bool
	// Text is the captured text with escapes removed.
	Text string
	// Raw is the captured text as written.
	Raw string
}

// Notation is a parsed notation string.
type Notation struct {
	Prefix    Section
	Record    Section
	Selector  Section
	Parameter Section
	Index1    Section
	Index2    Section
}

// HasParameter reports whether the selector takes a parameter.
func (n *Notation) HasParameter() bool {
	return takesParameter(n.Selector.Text)
}

func takesParameter(selector string) bool {
	switch selector {
	case SelectorFile, SelectorField, SelectorCustomField:
		return true
	}
	return false
}

func validSelector(selector string) bool {
	switch selector {
	case SelectorType, SelectorTitle, SelectorNotes:
		return true
	}
	return takesParameter(selector)
}

func syntaxError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// Parse parses a notation. A string without any '/' is first tried as
// URL-safe base64 of a notation.
func Parse(s string) (*Notation, error) {
	if s == "" {
		return nil, syntaxError("empty notation")
	}
	if !strings.Contains(s, "/") {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil || !utf8.Valid(decoded) || !strings.Contains(string(decoded), "/") {
			return nil, syntaxError("missing record or selector in %q", s)
		}
		s = string(decoded)
	}

	var n Notation
	pos := 0
	if len(s) >= len(Prefix) && strings.EqualFold(s[:len(Prefix)], Prefix) {
		n.Prefix = Section{Present: true, Text: s[:len(Prefix)], Raw: s[:len(Prefix)]}
		pos = len(Prefix)
	}

	rec, next, err := scan(s, pos, "/", true)
	if err != nil {
		return nil, err
	}
	if rec.Text == "" {
		return nil, syntaxError("missing record")
	}
	if next >= len(s) {
		return nil, syntaxError("missing selector after record %q", rec.Raw)
	}
	n.Record = rec
	pos = next + 1

	sel, next, err := scan(s, pos, "/[", false)
	if err != nil {
		return nil, err
	}
	sel.Text = strings.ToLower(sel.Text)
	if !validSelector(sel.Text) {
		return nil, syntaxError("invalid selector %q", sel.Raw)
	}
	n.Selector = sel
	pos = next

	if !takesParameter(sel.Text) {
		if pos < len(s) {
			return nil, syntaxError("selector %q takes no parameter, found %q", sel.Text, s[pos:])
		}
		return &n, nil
	}

	if pos >= len(s) || s[pos] != '/' {
		return nil, syntaxError("selector %q requires a parameter", sel.Text)
	}
	param, next, err := scan(s, pos+1, "[", true)
	if err != nil {
		return nil, err
	}
	if param.Text == "" {
		return nil, syntaxError("selector %q requires a parameter", sel.Text)
	}
	n.Parameter = param
	pos = next

	for _, idx := range []*Section{&n.Index1, &n.Index2} {
		if pos >= len(s) {
			break
		}
		if sel.Text == SelectorFile {
			return nil, syntaxError("file selector takes no index, found %q", s[pos:])
		}
		sec, end, err := scanIndex(s, pos)
		if err != nil {
			return nil, err
		}
		*idx = sec
		pos = end
	}
	if pos < len(s) {
		return nil, syntaxError("unexpected characters %q after last index", s[pos:])
	}
	return &n, nil
}

// scan reads from pos up to the first unescaped delimiter and returns the
// section together with the delimiter position (len(s) when none was found).
func scan(s string, pos int, delims string, escaped bool) (Section, int, error) {
	var text strings.Builder
	i := pos
	for i < len(s) {
		c := s[i]
		if escaped && c == '\\' {
			if i+1 >= len(s) || !strings.ContainsRune(escapable, rune(s[i+1])) {
				return Section{}, 0, syntaxError("invalid escape at position %d", i)
			}
			text.WriteByte(s[i+1])
			i += 2
			continue
		}
		if strings.IndexByte(delims, c) >= 0 {
			break
		}
		text.WriteByte(c)
		i++
	}
	return Section{Present: i > pos, Text: text.String(), Raw: s[pos:i]}, i, nil
}

// scanIndex reads a bracketed index starting at s[pos] == '['. The returned
// position is just past the closing bracket.
func scanIndex(s string, pos int) (Section, int, error) {
	if s[pos] != '[' {
		return Section{}, 0, syntaxError("expected '[' at position %d, found %q", pos, s[pos:])
	}
	sec, end, err := scan(s, pos+1, "[]", true)
	if err != nil {
		return Section{}, 0, err
	}
	if end >= len(s) || s[end] != ']' {
		return Section{}, 0, syntaxError("unbalanced brackets at position %d", pos)
	}
	sec.Present = true
	sec.Raw = s[pos : end+1]
	return sec, end + 1, nil
}

// Escape escapes text for use as a record or parameter section.
func Escape(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapable, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String rebuilds the notation from the raw sections.
func (n *Notation) String() string {
	var b strings.Builder
	if n.Prefix.Present {
		b.WriteString(Prefix)
	}
	b.WriteString(n.Record.Raw)
	b.WriteByte('/')
	b.WriteString(n.Selector.Raw)
	if n.Parameter.Present {
		b.WriteByte('/')
		b.WriteString(n.Parameter.Raw)
	}
	b.WriteString(n.Index1.Raw)
	b.WriteString(n.Index2.Raw)
	return b.String()
}

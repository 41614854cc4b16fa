// Package codec encodes notes to and from their on-disk text form: a
// "---" delimited header of key: value lines followed by the raw body.
package codec

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/starford/inkwell/internal/models"
)

const (
	marker = "---"

	keyTitle     = "title"
	keyCreatedAt = "createdAt"
	keyUpdatedAt = "updatedAt"
)

// Meta is the structured part of a decoded note.
type Meta struct {
	Title     string
	Filename  string
	CreatedAt time.Time // zero when absent or unparseable
	UpdatedAt time.Time // zero when absent or unparseable
	HasHeader bool
}

// Decoded is the result of Decode.
type Decoded struct {
	Meta Meta
	Body string
}

// Encode renders the header block, a blank line, and the body verbatim.
func Encode(n models.Note) []byte {
	var b bytes.Buffer
	b.Grow(len(n.Content) + 128)
	b.WriteString(marker + "\n")
	b.WriteString(keyTitle + ": " + encodeValue(n.Title) + "\n")
	b.WriteString(keyCreatedAt + ": " + formatTime(n.CreatedAt) + "\n")
	b.WriteString(keyUpdatedAt + ": " + formatTime(n.UpdatedAt) + "\n")
	b.WriteString(marker + "\n\n")
	b.WriteString(n.Content)
	return b.Bytes()
}

// Decode splits data into header metadata and body. It never fails: text
// without a header at its very start is returned whole as the body, with an
// empty title and fallbackFilename as the filename.
func Decode(data []byte, fallbackFilename string) Decoded {
	out := Decoded{Meta: Meta{Filename: fallbackFilename}}

	header, body, ok := splitHeader(string(data))
	if !ok {
		out.Body = string(data)
		return out
	}
	out.Meta.HasHeader = true
	out.Body = body

	for _, line := range header {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case keyTitle:
			out.Meta.Title = decodeValue(value)
		case keyCreatedAt:
			out.Meta.CreatedAt = parseTime(value)
		case keyUpdatedAt:
			out.Meta.UpdatedAt = parseTime(value)
		}
	}
	return out
}

// splitHeader returns the header lines between the start and end markers and
// the body after the single blank separator line.
func splitHeader(text string) ([]string, string, bool) {
	first, rest, found := cutLine(text)
	if !found || first != marker {
		return nil, "", false
	}

	var header []string
	for {
		line, next, ok := cutLine(rest)
		if line == marker {
			rest = next
			break
		}
		if !ok {
			// No closing marker.
			return nil, "", false
		}
		header = append(header, line)
		rest = next
	}

	// Consume exactly one blank separator line.
	switch {
	case strings.HasPrefix(rest, "\r\n"):
		rest = rest[2:]
	case strings.HasPrefix(rest, "\n"):
		rest = rest[1:]
	}
	return header, rest, true
}

// cutLine splits off the first line (without its terminator, CR tolerated).
// ok is false when s has no newline; line is then all of s.
func cutLine(s string) (line, rest string, ok bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return strings.TrimSuffix(s, "\r"), "", false
	}
	return strings.TrimSuffix(s[:i], "\r"), s[i+1:], true
}

// encodeValue quotes values that a trimmed single header line cannot carry.
func encodeValue(v string) string {
	if needsQuote(v) {
		return strconv.Quote(v)
	}
	return v
}

func needsQuote(v string) bool {
	if v == "" {
		return false
	}
	if strings.ContainsAny(v, "\r\n") || strings.HasPrefix(v, `"`) {
		return true
	}
	r := []rune(v)
	return unicode.IsSpace(r[0]) || unicode.IsSpace(r[len(r)-1])
}

func decodeValue(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 first and falls back to dateparse for the
// looser formats other tools write. Unparseable values yield the zero time.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC()
	}
	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

package webhook

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrDecode marks a body that cannot be turned into a flat map.
var ErrDecode = errors.New("webhook: decode failed")

var (
	bracketSegment = regexp.MustCompile(`\[(.*?)\]`)
	// Leftovers of double-escaped JSON: a literal `\n"` or any backslash.
	escapeArtifacts = regexp.MustCompile(`\\n"|\\`)
)

// Decode turns a raw CRM webhook body into a flat map keyed by the innermost
// bracket segment of each form key (`leads[note][0][note][text]` -> `text`).
//
// The body is percent-decoded once as a whole and then parsed as a query
// string, which decodes each pair again. Keys that occur more than once are
// dropped. Values are JSON when they parse as JSON; otherwise they are cleaned
// strings, coerced to Int when all digits.
func Decode(raw []byte) (Flat, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecode)
	}

	pairs := parseQuery(unescape(string(raw), false))

	out := make(Flat, len(pairs.order))
	for _, key := range pairs.order {
		vals := pairs.values[key]
		if len(vals) != 1 {
			continue
		}
		out[shortKey(key)] = decodeValue(vals[0])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrDecode)
	}
	return out, nil
}

func shortKey(key string) string {
	m := bracketSegment.FindAllStringSubmatch(key, -1)
	if len(m) == 0 {
		return key
	}
	return m[len(m)-1][1]
}

func decodeValue(s string) Value {
	if v, err := parseJSONValue(s); err == nil {
		return v
	}
	cleaned := escapeArtifacts.ReplaceAllString(s, "")
	if isDigits(cleaned) {
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return IntValue(n)
		}
	}
	return StringValue(cleaned)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

type multimap struct {
	order  []string
	values map[string][]string
}

// parseQuery splits a query string the lenient way CRM payloads need:
// malformed escapes survive as text instead of failing the whole body,
// pairs without '=' and pairs with empty values are skipped.
func parseQuery(s string) multimap {
	mm := multimap{values: map[string][]string{}}
	for _, field := range strings.Split(s, "&") {
		if field == "" {
			continue
		}
		name, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			continue
		}
		name = unescape(name, true)
		value = unescape(value, true)
		if _, seen := mm.values[name]; !seen {
			mm.order = append(mm.order, name)
		}
		mm.values[name] = append(mm.values[name], value)
	}
	return mm
}

// unescape percent-decodes s. Invalid escapes are kept verbatim and invalid
// UTF-8 in the result is replaced with U+FFFD. When plus is set, '+' means space.
func unescape(s string, plus bool) string {
	if !strings.ContainsAny(s, "%+") && utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case c == '+' && plus:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	out := b.String()
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "\uFFFD")
	}
	return out
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Package phpserial decodes reference IDs out of PHP-serialized metadata
// values. It deliberately does not implement a general unserializer: the
// legacy store contains truncated and double-encoded values that a strict
// parser rejects, so extraction matches the tagged-string pattern
// s:len:"payload" and keeps whatever integer payloads appear, in order.
package phpserial

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the shapes a decoded metadata value can take.
type Kind int

const (
	// KindEmpty means the value carries no reference at all. Empty strings,
	// "0" and SQL NULL all collapse to this; it is a legitimate state, not
	// an error.
	KindEmpty Kind = iota
	// KindScalar means the value was a bare integer.
	KindScalar
	// KindList means the value was a serialized array of one or more IDs.
	KindList
)

// Decoded is the result of decoding a raw metadata value.
type Decoded struct {
	Kind Kind
	// IDs holds the extracted legacy IDs in their original order. Empty for
	// KindEmpty, exactly one element for KindScalar.
	IDs []int64
}

// First returns the primary reference. By legacy convention the first
// element of a serialized array is the authoritative one when a single
// value is required.
func (d Decoded) First() (int64, bool) {
	if len(d.IDs) == 0 {
		return 0, false
	}
	return d.IDs[0], true
}

// DecodeError reports a non-empty value from which no ID could be
// extracted. The original text rides along so the failure can be
// reproduced from a report alone.
type DecodeError struct {
	Raw string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("no reference IDs in value %q", truncate(e.Raw, 80))
}

var (
	taggedString = regexp.MustCompile(`s:\d+:"([^"]*)"`)
	taggedDigits = regexp.MustCompile(`s:\d+:"(\d+)"`)
	taggedInt    = regexp.MustCompile(`i:\d+;i:(\d+);`)
)

// Decode extracts the reference IDs embedded in a raw metadata value.
//
// A bare integer decodes to KindScalar. A serialized array decodes to
// KindList with every integer-like payload in left-to-right order, whether
// stored as tagged strings (s:1:"7") or tagged ints (i:0;i:7;). Empty,
// "0" and NULL-ish values decode to KindEmpty. Anything else is a
// *DecodeError.
func Decode(raw string) (Decoded, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "0" || strings.EqualFold(trimmed, "null") {
		return Decoded{Kind: KindEmpty}, nil
	}

	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Decoded{Kind: KindScalar, IDs: []int64{id}}, nil
	}

	ids := extractIDs(trimmed)
	if len(ids) == 0 {
		return Decoded{}, &DecodeError{Raw: raw}
	}
	return Decoded{Kind: KindList, IDs: ids}, nil
}

// ExtractStrings returns every tagged-string payload in order, without
// requiring the payloads to be numeric. The nationality and co-production
// paths use this when term IDs were stored as names.
func ExtractStrings(raw string) []string {
	matches := taggedString.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// extractIDs pulls integer payloads from a serialized blob. Tagged strings
// and tagged ints can coexist in double-encoded values; order within each
// form is preserved, tagged strings first since that is the dominant
// encoding in the legacy data.
func extractIDs(raw string) []int64 {
	var ids []int64
	for _, m := range taggedDigits.FindAllStringSubmatch(raw, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		return ids
	}
	for _, m := range taggedInt.FindAllStringSubmatch(raw, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

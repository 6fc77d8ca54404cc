package judge

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Equal reports whether an actual output matches the oracle's expected output.
//
// Outputs that parse as JSON are compared structurally, so formatting, key order
// and number spelling (1 vs 1.0) do not matter. Numbers are compared by exact
// decimal value, never through float64. When orderMatters is false a
// top-level array is compared as a multiset. Anything else is compared line by
// line with trailing whitespace ignored.
func Equal(actual, expected string, orderMatters bool) bool {
	av, aok := decode(actual)
	ev, eok := decode(expected)
	if aok && eok {
		if !orderMatters {
			as, aArr := av.([]any)
			es, eArr := ev.([]any)
			if aArr && eArr {
				return sameMultiset(as, es)
			}
		}
		return canonical(av) == canonical(ev)
	}
	return normalizeText(actual) == normalizeText(expected)
}

// EqualCalls compares the outputs of a design-class test case, which are JSON arrays
// holding one result per method call. It returns the index of the first mismatching
// call, or -1 if every call matches.
func EqualCalls(actual, expected string, orderMatters bool) int {
	av, aok := decode(actual)
	ev, eok := decode(expected)
	as, aArr := av.([]any)
	es, eArr := ev.([]any)
	if !aok || !eok || !aArr || !eArr {
		if Equal(actual, expected, orderMatters) {
			return -1
		}
		return 0
	}

	for i := range es {
		if i >= len(as) {
			return i
		}
		if !Equal(canonical(as[i]), canonical(es[i]), orderMatters) {
			return i
		}
	}
	if len(as) > len(es) {
		return len(es)
	}
	return -1
}

func decode(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Trailing garbage means this is not a single JSON document.
	if dec.More() {
		return nil, false
	}
	return normalizeNumbers(v), true
}

// normalizeNumbers rewrites every json.Number in v to its canonical spelling.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return json.Number(canonicalNumber(string(t)))
	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}
	}
	return v
}

// canonicalNumber spells a JSON number as <digits>e<exp> with no leading or
// trailing zeros in digits, so two spellings of the same decimal value agree.
// 1, 1.0 and 10e-1 all become "1"; 1.50 becomes "15e-1".
func canonicalNumber(s string) string {
	mant, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return s
		}
		mant, exp = s[:i], e
	}

	neg := strings.HasPrefix(mant, "-")
	mant = strings.TrimPrefix(mant, "-")
	digits := mant
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		digits = mant[:i] + mant[i+1:]
		exp -= len(mant) - i - 1
	}

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(trimmed)
	if exp != 0 {
		b.WriteByte('e')
		b.WriteString(strconv.Itoa(exp))
	}
	return b.String()
}

// canonical re-encodes a decoded value; encoding/json sorts map keys and
// json.Number values are written as decode normalized them.
func canonical(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func sameMultiset(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i] = canonical(a[i])
		kb[i] = canonical(b[i])
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

package ai

import (
	"strings"
)

const (
	technicalLabel  = "Technical:"
	behavioralLabel = "Behavioral:"
	separator       = " AND "
)

// Query is the two-part search query produced by rewriting.
type Query struct {
	Technical  []string
	Behavioral []string
}

// String renders the query as "Technical: <terms> AND Behavioral: <terms>".
// Both sections are always present.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(technicalLabel)
	if len(q.Technical) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(q.Technical, ", "))
	}
	b.WriteString(separator)
	b.WriteString(behavioralLabel)
	if len(q.Behavioral) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(q.Behavioral, ", "))
	}
	return b.String()
}

func FormatQuery(technical, behavioral []string) string {
	return Query{Technical: cleanTerms(technical), Behavioral: cleanTerms(behavioral)}.String()
}

// ParseQuery reads a query in the two-part format. Labels are matched
// case-insensitively and terms are split on commas.
func ParseQuery(s string) (Query, bool) {
	lower := asciiLower(s)

	tech := strings.Index(lower, strings.ToLower(technicalLabel))
	if tech < 0 {
		return Query{}, false
	}

	rest := lower[tech+len(technicalLabel):]
	sep := strings.Index(rest, strings.ToLower(separator+behavioralLabel))
	if sep < 0 {
		return Query{}, false
	}

	techStart := tech + len(technicalLabel)
	behStart := techStart + sep + len(separator) + len(behavioralLabel)

	return Query{
		Technical:  splitTerms(s[techStart : techStart+sep]),
		Behavioral: splitTerms(s[behStart:]),
	}, true
}

// asciiLower keeps byte offsets aligned with s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func splitTerms(s string) []string {
	return cleanTerms(strings.Split(s, ","))
}

func cleanTerms(terms []string) []string {
	var out []string
	for _, term := range terms {
		term = strings.Join(strings.Fields(term), " ")
		term = strings.Trim(term, ".;")
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

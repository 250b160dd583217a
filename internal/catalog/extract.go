package catalog

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/utils"
)

// ErrNoHeading is returned for pages without an h1; such pages have no name
// and produce no record.
var ErrNoHeading = errors.New("page has no primary heading")

// Keyword sets used for test type tagging. Matching is a case-insensitive
// substring check against the whole page text.
var (
	KnowledgeKeywords   = []string{"java", "python", "sql", "coding", "technical", "skill"}
	PersonalityKeywords = []string{"personality", "behavior", "leadership", "opq"}
)

var durationExpr = regexp.MustCompile(`(\d+)\s*(?:min|minute)`)

// skipped elements never contribute visible text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Extract parses an assessment product page.
func Extract(r io.Reader, pageURL string) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return ExtractDocument(doc, pageURL)
}

// ExtractDocument builds a record from an already parsed page.
func ExtractDocument(doc *goquery.Document, pageURL string) (*Record, error) {
	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		return nil, ErrNoHeading
	}

	return ExtractText(PageText(doc.Selection), utils.CollapseSpaces(heading.Text()), pageURL), nil
}

// ExtractText applies the field heuristics to normalized page text.
func ExtractText(text, name, pageURL string) *Record {
	text = utils.CollapseSpaces(text)
	lower := strings.ToLower(text)

	return &Record{
		URL:             pageURL,
		Name:            name,
		Description:     utils.Prefix(text, MaxDescriptionLength),
		DurationMinutes: parseDuration(lower),
		RemoteSupport:   yesNo(strings.Contains(lower, "remote")),
		AdaptiveSupport: yesNo(strings.Contains(lower, "adaptive")),
		TestType:        classify(lower),
	}
}

// PageText returns the visible text of the selection, one space between text
// nodes and whitespace collapsed.
func PageText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		case html.ElementNode:
			if skipped[n.Data] {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	for _, node := range sel.Nodes {
		walk(node)
	}

	return utils.CollapseSpaces(strings.Join(parts, " "))
}

func parseDuration(lower string) int {
	match := durationExpr.FindStringSubmatch(lower)
	if match == nil {
		return 0
	}
	minutes, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return minutes
}

func classify(lower string) []string {
	var types []string
	if containsAny(lower, KnowledgeKeywords) {
		types = append(types, TypeKnowledge)
	}
	if containsAny(lower, PersonalityKeywords) {
		types = append(types, TypePersonality)
	}
	if len(types) == 0 {
		types = []string{TypeGeneral}
	}
	return types
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func yesNo(v bool) string {
	if v {
		return Yes
	}
	return No
}

package catalog

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://www.shl.com/solutions/products/product-catalog/view/test/"

func TestExtractRequiresHeading(t *testing.T) {
	t.Parallel()

	pages := []string{
		``,
		`<html><body><p>Python coding test, 30 minutes, remote.</p></body></html>`,
		`<html><body><h2>Java 8 (New)</h2><p>technical skill</p></body></html>`,
	}

	for _, page := range pages {
		record, err := Extract(strings.NewReader(page), pageURL)
		require.ErrorIs(t, err, ErrNoHeading)
		assert.Nil(t, record)
	}
}

func TestExtractFields(t *testing.T) {
	t.Parallel()

	page := `<html>
<head><title>Catalog</title><style>.x { color: red }</style></head>
<body>
  <h1>  Python   (New) </h1>
  <script>var leadership = "hidden";</script>
  <p>Multi-choice test measuring Python knowledge.</p>
  <p>Approximate Completion Time: 11 Minutes</p>
  <p>Remote Testing available. Adaptive/IRT supported.</p>
</body>
</html>`

	record, err := Extract(strings.NewReader(page), pageURL)
	require.NoError(t, err)

	assert.Equal(t, pageURL, record.URL)
	assert.Equal(t, "Python (New)", record.Name)
	assert.Equal(t, 11, record.DurationMinutes)
	assert.Equal(t, Yes, record.RemoteSupport)
	assert.Equal(t, Yes, record.AdaptiveSupport)
	assert.Equal(t, []string{TypeKnowledge}, record.TestType)
	assert.NotContains(t, record.Description, "hidden")
	assert.NotContains(t, record.Description, "color")
	assert.Contains(t, record.Description, "Python (New) Multi-choice test")
}

func TestExtractTextTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "both categories",
			text: "Python developer with leadership responsibilities",
			want: []string{TypeKnowledge, TypePersonality},
		},
		{
			name: "personality only",
			text: "Occupational Personality Questionnaire OPQ32r",
			want: []string{TypePersonality},
		},
		{
			name: "case insensitive",
			text: "Advanced SQL Server",
			want: []string{TypeKnowledge},
		},
		{
			name: "no signal",
			text: "Verify numerical reasoning for graduates",
			want: []string{TypeGeneral},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := ExtractText(tt.text, "Name", pageURL)
			assert.Equal(t, tt.want, record.TestType)
		})
	}
}

func TestExtractTextDefaults(t *testing.T) {
	t.Parallel()

	record := ExtractText("Numerical reasoning test", "Verify", pageURL)

	assert.Zero(t, record.DurationMinutes)
	assert.Equal(t, No, record.RemoteSupport)
	assert.Equal(t, No, record.AdaptiveSupport)
}

func TestExtractTextDuration(t *testing.T) {
	t.Parallel()

	record := ExtractText("Takes 25 minutes, retake after 60 min", "Timed", pageURL)
	assert.Equal(t, 25, record.DurationMinutes)

	record = ExtractText("Completion time 7min", "Short", pageURL)
	assert.Equal(t, 7, record.DurationMinutes)
}

func TestExtractTextDescriptionLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é  ", 1000)
	record := ExtractText(text, "Long", pageURL)

	assert.Equal(t, MaxDescriptionLength, utf8.RuneCountInString(record.Description))
	assert.NotContains(t, record.Description, "  ")
}

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileNormalizes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `[
  {"url": "https://example.com/a", "name": "A", "duration": -3, "remote_support": "yes", "test_type": []},
  null,
  {"url": "https://example.com/b", "name": "B", "duration": 20, "adaptive_support": "Yes", "test_type": ["Personality & Behavior"]}
]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	records, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, records.Len())

	a := records.FindByURL("https://example.com/a")
	require.NotNil(t, a)
	assert.Equal(t, []string{TypeGeneral}, a.TestType)
	assert.Zero(t, a.DurationMinutes)
	assert.Equal(t, No, a.RemoteSupport)
	assert.Equal(t, No, a.AdaptiveSupport)

	b := records.FindByURL("https://example.com/b")
	require.NotNil(t, b)
	assert.Equal(t, Yes, b.AdaptiveSupport)
	assert.True(t, b.HasType(TypePersonality))
	assert.False(t, b.HasType(TypeKnowledge, TypeCognitive))

	assert.Nil(t, records.FindByURL("https://example.com/c"))
	assert.Equal(t, map[string]int{TypeGeneral: 1, TypePersonality: 1}, records.TypeDistribution())
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	records, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, records)
	assert.Zero(t, records.Len())
	assert.False(t, records.IsComplete(1))
}

func TestToFileReplacesWholeFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "catalog.json")

	first := &Records{Items: []*Record{
		{URL: "https://example.com/b", Name: "B & Co <Test>", TestType: []string{TypeKnowledge}, RemoteSupport: No, AdaptiveSupport: No},
		{URL: "https://example.com/a", Name: "Évaluation", TestType: []string{TypeGeneral}, RemoteSupport: Yes, AdaptiveSupport: No},
	}}
	first.SortByURL()
	require.NoError(t, first.ToFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "B & Co <Test>")
	assert.Contains(t, string(raw), "Évaluation")
	assert.Contains(t, string(raw), "\n  {\n    \"url\"")

	second := &Records{}
	require.NoError(t, second.ToFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}

func TestRecordsURLs(t *testing.T) {
	t.Parallel()

	records := &Records{Items: []*Record{{URL: "b"}, {URL: "a"}}}
	assert.Equal(t, []string{"b", "a"}, records.URLs())

	records.SortByURL()
	assert.Equal(t, []string{"a", "b"}, records.URLs())

	var empty *Records
	assert.Empty(t, empty.URLs())
}

func TestDigestTracksContentNotOrder(t *testing.T) {
	t.Parallel()

	records := makeRecords(3)
	reversed := &Records{Items: []*Record{records.Items[2], records.Items[1], records.Items[0]}}
	assert.Equal(t, records.Digest(), reversed.Digest())
	assert.Equal(t, "https://example.com/item-002", reversed.Items[0].URL, "digest must not reorder the snapshot")

	renamed := makeRecords(3)
	renamed.Items[1].URL = "https://example.com/other"
	assert.NotEqual(t, records.Digest(), renamed.Digest())

	edited := makeRecords(3)
	edited.Items[0].Description = "changed"
	assert.NotEqual(t, records.Digest(), edited.Digest())

	var empty *Records
	assert.Equal(t, (&Records{}).Digest(), empty.Digest())
}

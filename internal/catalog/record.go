package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

const (
	TypeKnowledge   = "Knowledge & Skills"
	TypePersonality = "Personality & Behavior"
	TypeCognitive   = "Cognitive Ability"
	TypeGeneral     = "General Ability"

	Yes = "Yes"
	No  = "No"

	// MaxDescriptionLength is the description cap in runes.
	MaxDescriptionLength = 800
)

// Record is a single assessment product from the catalog.
type Record struct {
	URL             string   `json:"url" mapstructure:"url"`
	Name            string   `json:"name" mapstructure:"name"`
	Description     string   `json:"description" mapstructure:"description"`
	DurationMinutes int      `json:"duration" mapstructure:"duration"`
	RemoteSupport   string   `json:"remote_support" mapstructure:"remote_support"`
	AdaptiveSupport string   `json:"adaptive_support" mapstructure:"adaptive_support"`
	TestType        []string `json:"test_type" mapstructure:"test_type"`
}

// HasType reports whether the record carries any of the given test types.
func (r *Record) HasType(types ...string) bool {
	for _, t := range types {
		if slices.Contains(r.TestType, t) {
			return true
		}
	}
	return false
}

// normalize enforces the record invariants on data coming from disk.
func (r *Record) normalize() {
	if len(r.TestType) == 0 {
		r.TestType = []string{TypeGeneral}
	}
	if r.DurationMinutes < 0 {
		r.DurationMinutes = 0
	}
	if r.RemoteSupport != Yes {
		r.RemoteSupport = No
	}
	if r.AdaptiveSupport != Yes {
		r.AdaptiveSupport = No
	}
}

// Records is a catalog snapshot. Order carries no meaning.
type Records struct {
	Items []*Record
}

func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// IsComplete reports whether the snapshot holds at least min records.
func (r *Records) IsComplete(min int) bool {
	return r.Len() >= min
}

func (r *Records) FindByURL(url string) *Record {
	if r == nil {
		return nil
	}
	for _, record := range r.Items {
		if record.URL == url {
			return record
		}
	}
	return nil
}

func (r *Records) URLs() []string {
	urls := make([]string, 0, r.Len())
	if r == nil {
		return urls
	}
	for _, record := range r.Items {
		urls = append(urls, record.URL)
	}
	return urls
}

// TypeDistribution counts records per test type.
func (r *Records) TypeDistribution() map[string]int {
	dist := make(map[string]int)
	if r == nil {
		return dist
	}
	for _, record := range r.Items {
		for _, t := range record.TestType {
			dist[t]++
		}
	}
	return dist
}

// Digest identifies the snapshot contents independently of record order.
func (r *Records) Digest() string {
	var items []*Record
	if r != nil {
		items = slices.Clone(r.Items)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].URL < items[j].URL
	})

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, item := range items {
		// Record always encodes.
		_ = enc.Encode(item)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SortByURL orders the snapshot by URL so repeated crawls produce stable files.
func (r *Records) SortByURL() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].URL < r.Items[j].URL
	})
}

// LoadFile reads a snapshot written by ToFile (a JSON array of records).
// A missing file is reported with an error wrapping os.ErrNotExist.
func LoadFile(path string) (*Records, error) {
	_, records, err := readRecords(path)
	return records, err
}

// readRecords returns the raw file contents along with the decoded and
// normalized records.
func readRecords(path string) ([]byte, *Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var items []*Record
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	kept := items[:0]
	for _, item := range items {
		if item == nil {
			continue
		}
		item.normalize()
		kept = append(kept, item)
	}

	return data, &Records{Items: kept}, nil
}

// ToFile replaces the file at path with the indented JSON snapshot.
func (r *Records) ToFile(path string) error {
	items := r.Items
	if items == nil {
		items = []*Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync catalog: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace catalog %s: %w", path, err)
	}

	return nil
}

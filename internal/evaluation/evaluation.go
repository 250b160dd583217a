// Package evaluation measures recommendation quality against labeled queries
// and writes prediction files.
package evaluation

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/utils"
)

const (
	ColumnQuery = "Query"
	ColumnURL   = "Assessment_url"

	DefaultK = 10
	// RecallWarningThreshold is the mean recall below which results are
	// reported as weak.
	RecallWarningThreshold = 0.3
)

// Recommender is the part of the engine evaluated here.
type Recommender interface {
	Recommend(ctx context.Context, query string) (*recommend.Result, error)
}

// Labeled is one query with its relevant assessment URLs.
type Labeled struct {
	Query    string
	Relevant []string
}

type QueryReport struct {
	Query     string
	Relevant  int
	Predicted int
	Hits      int
	Recall    float64
	Err       error
}

type Report struct {
	K        int
	PerQuery []QueryReport
	Mean     float64
}

// LoadLabeled reads a Query,Assessment_url CSV and groups URLs by query in
// first-seen order.
func LoadLabeled(path string) ([]Labeled, error) {
	rows, err := readCSV(path, ColumnQuery, ColumnURL)
	if err != nil {
		return nil, err
	}

	var labeled []Labeled
	pos := make(map[string]int)
	for _, row := range rows {
		query, url := row[0], row[1]
		if query == "" || url == "" {
			continue
		}
		i, ok := pos[query]
		if !ok {
			i = len(labeled)
			pos[query] = i
			labeled = append(labeled, Labeled{Query: query})
		}
		labeled[i].Relevant = append(labeled[i].Relevant, url)
	}

	return labeled, nil
}

// LoadQueries reads the Query column of a CSV.
func LoadQueries(path string) ([]string, error) {
	rows, err := readCSV(path, ColumnQuery)
	if err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(rows))
	for _, row := range rows {
		if row[0] != "" {
			queries = append(queries, row[0])
		}
	}
	return queries, nil
}

// RecallAtK is the share of distinct relevant URLs found in the first k
// predictions.
func RecallAtK(predicted, relevant []string, k int) float64 {
	relevantSet := toSet(relevant)
	if len(relevantSet) == 0 {
		return 0
	}
	return float64(hits(predicted, relevantSet, k)) / float64(len(relevantSet))
}

func MeanRecall(recalls []float64) float64 {
	if len(recalls) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recalls {
		sum += r
	}
	return sum / float64(len(recalls))
}

// Evaluate runs every labeled query. A failing query scores zero and does not
// stop the run.
func Evaluate(ctx context.Context, rec Recommender, labeled []Labeled, k int, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if k <= 0 {
		k = DefaultK
	}

	report := &Report{K: k, PerQuery: make([]QueryReport, 0, len(labeled))}
	recalls := make([]float64, 0, len(labeled))

	for _, item := range labeled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		qr := QueryReport{Query: item.Query, Relevant: len(toSet(item.Relevant))}

		predicted, err := predict(ctx, rec, item.Query)
		if err != nil {
			qr.Err = err
			logger.Warn("Query failed during evaluation", zap.String("query", utils.TruncateForLog(item.Query, 60)), zap.Error(err))
		} else {
			qr.Predicted = len(predicted)
			qr.Hits = hits(predicted, toSet(item.Relevant), k)
			qr.Recall = RecallAtK(predicted, item.Relevant, k)
		}

		logger.Info("Evaluated query",
			zap.String("query", utils.TruncateForLog(item.Query, 60)),
			zap.Int("relevant", qr.Relevant),
			zap.Int("predicted", qr.Predicted),
			zap.Int("hits", qr.Hits),
			zap.Float64("recall", qr.Recall),
		)

		report.PerQuery = append(report.PerQuery, qr)
		recalls = append(recalls, qr.Recall)
	}

	report.Mean = MeanRecall(recalls)
	return report, nil
}

// WritePredictions writes the top DefaultK URLs for each query as a
// Query,Assessment_url CSV. The file is replaced as a whole.
func WritePredictions(ctx context.Context, rec Recommender, queries []string, path string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rows := [][]string{{ColumnQuery, ColumnURL}}
	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		logger.Info("Predicting",
			zap.Int("n", i+1),
			zap.Int("total", len(queries)),
			zap.String("query", utils.TruncateForLog(query, 50)),
		)

		predicted, err := predict(ctx, rec, query)
		if err != nil {
			logger.Warn("Query failed, no predictions written for it", zap.Error(err))
			continue
		}

		for _, url := range predicted[:min(DefaultK, len(predicted))] {
			rows = append(rows, []string{query, url})
		}
	}

	if err := writeCSV(path, rows); err != nil {
		return 0, err
	}
	return len(rows) - 1, nil
}

func predict(ctx context.Context, rec Recommender, query string) ([]string, error) {
	result, err := rec.Recommend(ctx, query)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(result.Assessments))
	for _, a := range result.Assessments {
		urls = append(urls, a.URL)
	}
	return urls, nil
}

func hits(predicted []string, relevant map[string]struct{}, k int) int {
	if k > len(predicted) || k <= 0 {
		k = len(predicted)
	}
	seen := make(map[string]struct{})
	count := 0
	for _, url := range predicted[:k] {
		if _, ok := relevant[url]; !ok {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		count++
	}
	return count
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// readCSV returns the named columns of every data row, trimmed.
func readCSV(path string, columns ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	idx := make([]int, len(columns))
	for i, column := range columns {
		idx[i] = -1
		for j, name := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), column) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("%s: missing column %q", path, column)
		}
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		row := make([]string, len(columns))
		for i, j := range idx {
			if j < len(record) {
				row[i] = strings.TrimSpace(record[j])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func writeCSV(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write predictions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close predictions: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

package harness

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"
)

// Summary aggregates a set of results.
type Summary struct {
	Total        int
	Passed       int
	AverageScore float64
	HighScoring  int // results scoring above 0.8
	Best         *TestResult
}

// Summarize aggregates results. Best is the highest score, first on ties.
func Summarize(results []TestResult) Summary {
	var s Summary
	s.Total = len(results)
	var total float64
	for i := range results {
		r := &results[i]
		if r.Passed {
			s.Passed++
		}
		if r.Score > highScoreCutoff {
			s.HighScoring++
		}
		total += r.Score
		if s.Best == nil || r.Score > s.Best.Score {
			s.Best = r
		}
	}
	if s.Total > 0 {
		s.AverageScore = total / float64(s.Total)
	}
	return s
}

// PassRate is the share of results that passed.
func (s Summary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("total", s.Total),
		slog.Int("passed", s.Passed),
		slog.Float64("pass_rate", s.PassRate()),
		slog.Float64("avg_score", s.AverageScore),
		slog.Int("high_scoring", s.HighScoring),
	}
	if s.Best != nil {
		attrs = append(attrs,
			slog.String("best_label", s.Best.Label),
			slog.Float64("best_score", s.Best.Score),
		)
	}
	return slog.GroupValue(attrs...)
}

// WriteCSV writes results to path with a header row.
func WriteCSV(path string, results []TestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&results, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

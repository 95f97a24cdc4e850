package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/harness"
)

// writeReport saves summary.csv and best_config.yaml and logs the summary.
func writeReport(dir string, results []harness.TestResult, best *config.Config) error {
	summary := harness.Summarize(results)
	slog.Info("summary", "summary", summary)

	summaryPath := filepath.Join(dir, "summary.csv")
	if err := harness.WriteCSV(summaryPath, results); err != nil {
		return err
	}
	slog.Info("summary saved", "path", summaryPath, "results", len(results))

	if best == nil {
		slog.Warn("no result to save as best config")
		return nil
	}
	configOutPath := filepath.Join(dir, "best_config.yaml")
	if err := best.WriteYAML(configOutPath); err != nil {
		return fmt.Errorf("saving best config: %w", err)
	}
	slog.Info("best config saved", "path", configOutPath)
	return nil
}

package accuracy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// FormatReport renders the console summary.
func FormatReport(r Report) string {
	cm := r.Confusion
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Valid pixels (used for metrics): %d\n", r.NValid))
	sb.WriteString(fmt.Sprintf("Pixels skipped (NoData or invalid): %d\n\n", r.NSkipped))
	sb.WriteString("Confusion matrix (rows = reference, cols = predicted)\n")
	sb.WriteString("                    Pred 0 (non-wooded)  Pred 1 (wooded)\n")
	sb.WriteString(fmt.Sprintf("Ref 0 (non-wooded)  TN = %-17d FP = %d\n", cm.TN, cm.FP))
	sb.WriteString(fmt.Sprintf("Ref 1 (wooded)      FN = %-17d TP = %d\n\n", cm.FN, cm.TP))
	sb.WriteString("Metrics:\n")
	sb.WriteString(fmt.Sprintf("  Accuracy:            %.4f\n", r.Accuracy))
	sb.WriteString(fmt.Sprintf("  Precision (wooded):  %.4f  (TP / (TP+FP))\n", r.Precision))
	sb.WriteString(fmt.Sprintf("  Recall (wooded):     %.4f  (TP / (TP+FN))\n", r.Recall))
	sb.WriteString(fmt.Sprintf("  F1 (wooded):         %.4f\n", r.F1))
	sb.WriteString(fmt.Sprintf("  Kappa:               %.4f\n", r.Kappa))
	return sb.String()
}

func kappaAgreement(kappa float64) string {
	switch {
	case kappa > 0.8:
		return "Almost perfect"
	case kappa > 0.6:
		return "Substantial"
	case kappa > 0.4:
		return "Moderate"
	case kappa > 0.2:
		return "Fair"
	case kappa > 0:
		return "Slight"
	}
	return "None"
}

// MarkdownInput describes one evaluation for the markdown report.
type MarkdownInput struct {
	Predicted string
	Reference string
	Started   time.Time
	Finished  time.Time
	Report    Report
	Error     string
}

// WriteMarkdownReport writes accuracy_analysis_<timestamp>.md under dir and
// returns its path.
func WriteMarkdownReport(dir string, in MarkdownInput) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	reportPath := filepath.Join(dir, fmt.Sprintf("accuracy_analysis_%s.md", in.Started.Format("2006-01-02_15-04-05")))

	r := in.Report
	cm := r.Confusion
	var sb strings.Builder
	sb.WriteString("# Wooded Mask Accuracy Report\n\n")
	sb.WriteString("## Overview\n")
	sb.WriteString(fmt.Sprintf("- **Predicted Mask**: %s\n", in.Predicted))
	sb.WriteString(fmt.Sprintf("- **Reference Mask**: %s\n", in.Reference))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", in.Started.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("- **Completed**: %s\n", in.Finished.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("- **Duration**: %s\n\n", in.Finished.Sub(in.Started)))

	if in.Error != "" {
		sb.WriteString(fmt.Sprintf("## Error Information\n```\n%s\n```\n", in.Error))
	} else {
		sb.WriteString("## Confusion Matrix\n\n")
		sb.WriteString("| | Pred 0 (non-wooded) | Pred 1 (wooded) |\n")
		sb.WriteString("|---|---|---|\n")
		sb.WriteString(fmt.Sprintf("| **Ref 0 (non-wooded)** | TN = %d | FP = %d |\n", cm.TN, cm.FP))
		sb.WriteString(fmt.Sprintf("| **Ref 1 (wooded)** | FN = %d | TP = %d |\n\n", cm.FN, cm.TP))

		sb.WriteString("## Metrics\n")
		sb.WriteString(fmt.Sprintf("- **Valid Pixels**: %d\n", r.NValid))
		sb.WriteString(fmt.Sprintf("- **Skipped Pixels**: %d\n", r.NSkipped))
		sb.WriteString(fmt.Sprintf("- **Accuracy**: %.4f (%.2f%%)\n", r.Accuracy, r.Accuracy*100))
		sb.WriteString(fmt.Sprintf("- **Precision (wooded)**: %.4f\n", r.Precision))
		sb.WriteString(fmt.Sprintf("- **Recall (wooded)**: %.4f\n", r.Recall))
		sb.WriteString(fmt.Sprintf("- **F1 (wooded)**: %.4f\n", r.F1))
		sb.WriteString(fmt.Sprintf("- **Kappa**: %.4f (%s agreement)\n", r.Kappa, kappaAgreement(r.Kappa)))
	}

	if err := os.WriteFile(reportPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report content: %w", err)
	}
	return reportPath, nil
}

// MetricsRow is one line of a batch metrics CSV.
type MetricsRow struct {
	SceneID   string  `csv:"scene_id"`
	Status    string  `csv:"status"`
	NValid    int     `csv:"n_valid"`
	NSkipped  int     `csv:"n_skip"`
	TP        int     `csv:"tp"`
	TN        int     `csv:"tn"`
	FP        int     `csv:"fp"`
	FN        int     `csv:"fn"`
	Accuracy  float64 `csv:"accuracy"`
	Precision float64 `csv:"precision"`
	Recall    float64 `csv:"recall"`
	F1        float64 `csv:"f1"`
	Kappa     float64 `csv:"kappa"`
	Error     string  `csv:"error"`
}

func NewMetricsRow(sceneID string, r Report) MetricsRow {
	return MetricsRow{
		SceneID:   sceneID,
		Status:    "ok",
		NValid:    r.NValid,
		NSkipped:  r.NSkipped,
		TP:        r.Confusion.TP,
		TN:        r.Confusion.TN,
		FP:        r.Confusion.FP,
		FN:        r.Confusion.FN,
		Accuracy:  r.Accuracy,
		Precision: r.Precision,
		Recall:    r.Recall,
		F1:        r.F1,
		Kappa:     r.Kappa,
	}
}

// Pooled sums the confusion matrices of every successful row and recomputes
// the statistics from the pooled counts.
func Pooled(rows []MetricsRow) Report {
	var cm ConfusionMatrix
	skipped := 0
	for _, row := range rows {
		if row.Status != "ok" {
			continue
		}
		cm.TP += row.TP
		cm.TN += row.TN
		cm.FP += row.FP
		cm.FN += row.FN
		skipped += row.NSkipped
	}
	r := FromConfusion(cm)
	r.NSkipped = skipped
	return r
}

func WriteMetricsCSV(path string, rows []MetricsRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating metrics file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("error writing metrics file: %w", err)
	}
	return nil
}

func ReadMetricsCSV(path string) ([]MetricsRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var rows []MetricsRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling CSV: %w", err)
	}
	return rows, nil
}

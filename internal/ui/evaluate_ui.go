package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/cache"
	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/properties"
)

// EvaluateOptions controls where the evaluation result goes besides stdout.
type EvaluateOptions struct {
	// JSONPath, when set, receives the report as JSON.
	JSONPath string
	// ReportDir receives the markdown report; data/reports when empty.
	ReportDir string
	NoCache   bool
}

// RunEvaluate compares a predicted mask with a reference mask, writes the
// markdown report and notifies Discord.
func RunEvaluate(req delivery.EvaluateRequest, opts EvaluateOptions) (accuracy.Report, error) {
	reportDir := opts.ReportDir
	if reportDir == "" {
		reportDir = properties.DataPath("reports")
	}
	var reportCache *cache.FileCache[accuracy.Report]
	if !opts.NoCache {
		reportCache = cache.NewFileCache[accuracy.Report]("accuracy")
	}

	in := accuracy.MarkdownInput{
		Predicted: req.PredictedPath,
		Reference: req.ReferencePath,
		Started:   time.Now(),
	}
	report, err := delivery.EvaluateScene(req, reportCache)
	in.Finished = time.Now()
	if err != nil {
		in.Error = err.Error()
		if _, reportErr := accuracy.WriteMarkdownReport(reportDir, in); reportErr != nil {
			fmt.Printf("Error generating report: %v\n", reportErr)
		}
		return accuracy.Report{}, err
	}
	in.Report = report

	fmt.Print(accuracy.FormatReport(report))

	if opts.JSONPath != "" {
		if err := writeReportJSON(opts.JSONPath, report); err != nil {
			return report, err
		}
		fmt.Printf("Report written to %s\n", opts.JSONPath)
	}
	reportPath, err := accuracy.WriteMarkdownReport(reportDir, in)
	if err != nil {
		fmt.Printf("Error generating accuracy report: %v\n", err)
	} else {
		fmt.Printf("Accuracy analysis report generated: %s\n", reportPath)
	}

	notifySuccess(fmt.Sprintf("Accuracy evaluation completed successfully!\n\n"+
		"**Results:**\n"+
		"- Predicted: %s\n"+
		"- Reference: %s\n"+
		"- Valid pixels: %d\n"+
		"- Accuracy: %.2f%%\n"+
		"- F1 (wooded): %.4f\n"+
		"- Kappa: %.4f",
		req.PredictedPath, req.ReferencePath, report.NValid, report.Accuracy*100, report.F1, report.Kappa))
	return report, nil
}

func writeReportJSON(path string, report accuracy.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// EvaluateMask handles the UI for scoring a mask against a reference mask
func EvaluateMask() {
	PrintWarning("Both masks must share the same grid. Pixels that are nodata in either mask are skipped.")

	predicted, err := ReadPath("Enter the predicted mask path: ")
	if err != nil {
		PrintError(err.Error())
		return
	}
	reference, err := ReadPath("Enter the reference mask path: ")
	if err != nil {
		PrintError(err.Error())
		return
	}

	if _, err := RunEvaluate(delivery.EvaluateRequest{PredictedPath: predicted, ReferencePath: reference}, EvaluateOptions{}); err != nil {
		reportError("evaluating mask", err)
	}
}

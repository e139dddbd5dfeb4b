package ui

import (
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/history"
	"github.com/forest-guardian/wooded-mask/internal/properties"
)

// PrintHistory lists recorded runs, newest first.
func PrintHistory(scene string, limit int) error {
	client, err := history.NewSQLiteClient(properties.HistoryDBPath())
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.ListRuns(scene, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintWarning("No runs recorded yet.")
		return nil
	}

	fmt.Printf("\n%sRecorded runs:%s\n", ColorGreen, ColorReset)
	for _, run := range runs {
		line := fmt.Sprintf("- #%d %s %s [%s] wooded=%d non-wooded=%d nodata=%d",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04"), run.Scene, run.Method,
			run.Counts.Wooded, run.Counts.NonWooded, run.Counts.NoData)
		if run.Kappa != nil {
			line += fmt.Sprintf(" kappa=%.4f", *run.Kappa)
		}
		fmt.Printf("%s%s%s\n", ColorGreen, line, ColorReset)
		fmt.Printf("    %s\n", run.Output)
	}
	return nil
}

// ListHistory handles the UI for viewing past runs
func ListHistory() {
	scene := ReadString("Enter a scene id to filter by (empty for all): ")
	if err := PrintHistory(scene, 20); err != nil {
		PrintError(fmt.Sprintf("Error reading run history: %s", err.Error()))
	}
}

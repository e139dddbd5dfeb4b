package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

func TestRecordAndListRuns(t *testing.T) {
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer client.Close()

	kappa := 0.72
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		{Scene: "a", Method: "threshold", Output: "a.tif", Counts: raster.MaskCounts{Wooded: 3, NonWooded: 5, NoData: 1}, CreatedAt: base},
		{Scene: "b", Method: "predict", Output: "b.tif", Counts: raster.MaskCounts{Wooded: 1}, Kappa: &kappa, CreatedAt: base.Add(time.Hour)},
		{Scene: "a", Method: "predict", Output: "a2.tif", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if _, err := client.RecordRun(r); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}
	}

	all, err := client.ListRuns("", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 3 || all[0].Output != "a2.tif" {
		t.Fatalf("expected newest run first, got %+v", all)
	}
	if all[1].Kappa == nil || *all[1].Kappa != kappa || all[1].Accuracy != nil {
		t.Errorf("unexpected metrics %+v", all[1])
	}

	scene, _ := client.ListRuns("a", 1)
	if len(scene) != 1 || scene[0].Output != "a2.tif" {
		t.Errorf("unexpected filtered runs %+v", scene)
	}
	if scene, _ := client.ListRuns("a", 0); scene[1].Counts.NoData != 1 {
		t.Errorf("expected counts to round-trip, got %+v", scene[1].Counts)
	}
}

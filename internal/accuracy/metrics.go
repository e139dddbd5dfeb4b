package accuracy

import (
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// ConfusionMatrix counts agreement over the valid intersection; rows are the
// reference class and columns the predicted class.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

func (c ConfusionMatrix) Total() int {
	return c.TP + c.TN + c.FP + c.FN
}

// Report holds the confusion matrix and the statistics derived from it.
type Report struct {
	Confusion ConfusionMatrix `json:"confusion_matrix"`
	NValid    int             `json:"n_valid"`
	NSkipped  int             `json:"n_skip"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Kappa     float64         `json:"kappa"`
}

func isClass(v uint8) bool {
	return v == raster.NonWooded || v == raster.Wooded
}

// Evaluate compares pred with ref. A pixel counts only when both hold a class
// value and ref differs from refNoData (when given).
func Evaluate(pred, ref raster.TernaryMask, refNoData *uint8) (Report, error) {
	if pred.Height != ref.Height || pred.Width != ref.Width {
		return Report{}, fmt.Errorf("%w: predicted %dx%d, reference %dx%d", raster.ErrShapeMismatch, pred.Height, pred.Width, ref.Height, ref.Width)
	}

	var cm ConfusionMatrix
	skipped := 0
	for i, r := range ref.Data {
		p := pred.Data[i]
		if !isClass(r) || !isClass(p) || (refNoData != nil && r == *refNoData) {
			skipped++
			continue
		}
		switch {
		case r == raster.Wooded && p == raster.Wooded:
			cm.TP++
		case r == raster.NonWooded && p == raster.NonWooded:
			cm.TN++
		case r == raster.NonWooded:
			cm.FP++
		default:
			cm.FN++
		}
	}

	report := FromConfusion(cm)
	report.NSkipped = skipped
	return report, nil
}

// FromConfusion derives every statistic from the four counts alone.
func FromConfusion(cm ConfusionMatrix) Report {
	n := cm.Total()
	r := Report{Confusion: cm, NValid: n}
	if n == 0 {
		return r
	}

	r.Accuracy = float64(cm.TP+cm.TN) / float64(n)
	if cm.TP+cm.FP > 0 {
		r.Precision = float64(cm.TP) / float64(cm.TP+cm.FP)
	}
	if cm.TP+cm.FN > 0 {
		r.Recall = float64(cm.TP) / float64(cm.TP+cm.FN)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}

	// A single class on both sides gives pe == 1; kappa is reported as 0.
	nn := float64(n) * float64(n)
	pe := (float64(cm.TP+cm.FP)*float64(cm.TP+cm.FN) + float64(cm.FN+cm.TN)*float64(cm.FP+cm.TN)) / nn
	if 1-pe != 0 {
		r.Kappa = (r.Accuracy - pe) / (1 - pe)
	}
	return r
}

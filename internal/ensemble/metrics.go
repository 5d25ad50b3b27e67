package ensemble

import (
	"gonum.org/v1/gonum/stat"
)

type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type ClassificationReport struct {
	Classes  map[string]ClassMetrics `json:"classes"`
	Accuracy float64                 `json:"accuracy"`
}

// Classify scores predictions against truth. Undefined ratios are reported as 0.
func Classify(truth, predicted []string, classes []string) ClassificationReport {
	tp := make(map[string]int)
	fp := make(map[string]int)
	fn := make(map[string]int)
	support := make(map[string]int)

	correct := 0
	for i := range truth {
		support[truth[i]]++
		if truth[i] == predicted[i] {
			tp[truth[i]]++
			correct++
			continue
		}
		fp[predicted[i]]++
		fn[truth[i]]++
	}

	report := ClassificationReport{Classes: make(map[string]ClassMetrics, len(classes))}
	for _, c := range classes {
		m := ClassMetrics{Support: support[c]}
		if d := tp[c] + fp[c]; d > 0 {
			m.Precision = float64(tp[c]) / float64(d)
		}
		if d := tp[c] + fn[c]; d > 0 {
			m.Recall = float64(tp[c]) / float64(d)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[c] = m
	}
	if len(truth) > 0 {
		report.Accuracy = float64(correct) / float64(len(truth))
	}
	return report
}

// RSquared is the coefficient of determination of predicted against truth.
func RSquared(truth, predicted []float64) float64 {
	return stat.RSquaredFrom(predicted, truth, nil)
}

package detector

// Evaluation holds support-weighted precision, recall and F1 over a labeled
// batch.
type Evaluation struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// weightedScores computes per-class precision/recall/F1 and averages them
// weighted by class support, the same averaging scikit-style reports use.
func weightedScores(yTrue, yPred []int) Evaluation {
	if len(yTrue) == 0 {
		return Evaluation{}
	}

	nClasses := 0
	for _, c := range yTrue {
		if c+1 > nClasses {
			nClasses = c + 1
		}
	}
	for _, c := range yPred {
		if c+1 > nClasses {
			nClasses = c + 1
		}
	}

	tp := make([]float64, nClasses)
	fp := make([]float64, nClasses)
	fn := make([]float64, nClasses)
	support := make([]float64, nClasses)
	for i := range yTrue {
		support[yTrue[i]]++
		if yPred[i] == yTrue[i] {
			tp[yTrue[i]]++
		} else {
			fp[yPred[i]]++
			fn[yTrue[i]]++
		}
	}

	var out Evaluation
	total := float64(len(yTrue))
	for c := 0; c < nClasses; c++ {
		if support[c] == 0 {
			continue
		}
		p, r := 0.0, 0.0
		if tp[c]+fp[c] > 0 {
			p = tp[c] / (tp[c] + fp[c])
		}
		if tp[c]+fn[c] > 0 {
			r = tp[c] / (tp[c] + fn[c])
		}
		f1 := 0.0
		if p+r > 0 {
			f1 = 2 * p * r / (p + r)
		}
		weight := support[c] / total
		out.Precision += weight * p
		out.Recall += weight * r
		out.F1 += weight * f1
	}
	return out
}

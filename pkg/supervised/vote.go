package supervised

// MajorityVote fuses binary per-model predictions: attack (1) iff the
// fraction of models predicting attack is strictly greater than 0.5, so a
// tie stays benign. preds is [model][row]; rows must align.
func MajorityVote(preds [][]int) []int {
	if len(preds) == 0 {
		return nil
	}
	rows := len(preds[0])
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		attacks := 0
		for _, p := range preds {
			if p[i] != 0 {
				attacks++
			}
		}
		if float64(attacks)/float64(len(preds)) > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// PluralityVote fuses multiclass predictions by plurality, breaking ties on
// the lowest class label. Binary fusion is the only fixed rule; plurality is
// this package's choice for multiclass.
func PluralityVote(preds [][]int, nClasses int) []int {
	if len(preds) == 0 {
		return nil
	}
	rows := len(preds[0])
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		votes := make([]int, nClasses)
		for _, p := range preds {
			if p[i] < nClasses {
				votes[p[i]]++
			}
		}
		best := 0
		for c, n := range votes {
			if n > votes[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out
}

// Package supervised holds the three independently trained classifiers and
// their majority-vote fusion: a bagged tree ensemble, a boosted-tree ensemble
// and a feed-forward network.
package supervised

import (
	"math"
	"math/rand"
	"sort"
)

// Classifier is one supervised ensemble member.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	Name() string
}

// TreeNode is a node of a CART-style tree. Exported for gob.
type TreeNode struct {
	Feature int
	Thresh  float64
	Left    *TreeNode
	Right   *TreeNode
	Leaf    bool
	Class   int     // classification leaves
	Value   float64 // regression leaves
}

func (n *TreeNode) classify(x []float64) int {
	for !n.Leaf {
		if x[n.Feature] <= n.Thresh {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Class
}

func (n *TreeNode) regress(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Thresh {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// buildClassTree grows a gini tree on the index subset. maxFeatures < total
// gives the random-subspace behavior used by the bagged forest.
func buildClassTree(X [][]float64, y []int, idx []int, depth, maxDepth, maxFeatures, nClasses int, rng *rand.Rand) *TreeNode {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	majority, pure := majorityClass(counts, len(idx))

	if depth >= maxDepth || len(idx) < 2 || pure {
		return &TreeNode{Leaf: true, Class: majority}
	}

	feature, thresh, ok := bestGiniSplit(X, y, idx, maxFeatures, nClasses, rng)
	if !ok {
		return &TreeNode{Leaf: true, Class: majority}
	}

	left, right := partition(X, idx, feature, thresh)
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Class: majority}
	}
	return &TreeNode{
		Feature: feature,
		Thresh:  thresh,
		Left:    buildClassTree(X, y, left, depth+1, maxDepth, maxFeatures, nClasses, rng),
		Right:   buildClassTree(X, y, right, depth+1, maxDepth, maxFeatures, nClasses, rng),
	}
}

func majorityClass(counts []int, total int) (class int, pure bool) {
	best := 0
	for c, n := range counts {
		if n > counts[best] {
			best = c
		}
	}
	return best, counts[best] == total
}

func bestGiniSplit(X [][]float64, y []int, idx []int, maxFeatures, nClasses int, rng *rand.Rand) (int, float64, bool) {
	nFeat := len(X[idx[0]])
	features := rng.Perm(nFeat)
	if maxFeatures > 0 && maxFeatures < nFeat {
		features = features[:maxFeatures]
	}

	bestGini := math.Inf(1)
	bestFeature, bestThresh := -1, 0.0

	for _, f := range features {
		// Candidate thresholds at midpoints between distinct sorted values.
		vals := make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = X[i][f]
		}
		sortFloats(vals)
		for k := 1; k < len(vals); k++ {
			if vals[k] == vals[k-1] {
				continue
			}
			thresh := (vals[k] + vals[k-1]) / 2
			g := splitGini(X, y, idx, f, thresh, nClasses)
			if g < bestGini {
				bestGini, bestFeature, bestThresh = g, f, thresh
			}
		}
	}
	return bestFeature, bestThresh, bestFeature >= 0
}

func splitGini(X [][]float64, y []int, idx []int, feature int, thresh float64, nClasses int) float64 {
	leftCounts := make([]int, nClasses)
	rightCounts := make([]int, nClasses)
	nl, nr := 0, 0
	for _, i := range idx {
		if X[i][feature] <= thresh {
			leftCounts[y[i]]++
			nl++
		} else {
			rightCounts[y[i]]++
			nr++
		}
	}
	total := float64(nl + nr)
	return float64(nl)/total*gini(leftCounts, nl) + float64(nr)/total*gini(rightCounts, nr)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func partition(X [][]float64, idx []int, feature int, thresh float64) (left, right []int) {
	for _, i := range idx {
		if X[i][feature] <= thresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// buildRegTree grows a variance-reduction tree over float targets, used by
// the boosted ensemble to fit residuals.
func buildRegTree(X [][]float64, r []float64, idx []int, depth, maxDepth int) *TreeNode {
	mean := 0.0
	for _, i := range idx {
		mean += r[i]
	}
	mean /= float64(len(idx))

	if depth >= maxDepth || len(idx) < 2 {
		return &TreeNode{Leaf: true, Value: mean}
	}

	bestVar := math.Inf(1)
	bestFeature, bestThresh := -1, 0.0
	nFeat := len(X[idx[0]])

	for f := 0; f < nFeat; f++ {
		vals := make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = X[i][f]
		}
		sortFloats(vals)
		for k := 1; k < len(vals); k++ {
			if vals[k] == vals[k-1] {
				continue
			}
			thresh := (vals[k] + vals[k-1]) / 2
			v := splitVariance(X, r, idx, f, thresh)
			if v < bestVar {
				bestVar, bestFeature, bestThresh = v, f, thresh
			}
		}
	}
	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}
	left, right := partition(X, idx, bestFeature, bestThresh)
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}
	return &TreeNode{
		Feature: bestFeature,
		Thresh:  bestThresh,
		Left:    buildRegTree(X, r, left, depth+1, maxDepth),
		Right:   buildRegTree(X, r, right, depth+1, maxDepth),
	}
}

func splitVariance(X [][]float64, r []float64, idx []int, feature int, thresh float64) float64 {
	var sl, sql, sr, sqr float64
	nl, nr := 0, 0
	for _, i := range idx {
		if X[i][feature] <= thresh {
			sl += r[i]
			sql += r[i] * r[i]
			nl++
		} else {
			sr += r[i]
			sqr += r[i] * r[i]
			nr++
		}
	}
	v := 0.0
	if nl > 0 {
		v += sql - sl*sl/float64(nl)
	}
	if nr > 0 {
		v += sqr - sr*sr/float64(nr)
	}
	return v
}

func sortFloats(v []float64) { sort.Float64s(v) }

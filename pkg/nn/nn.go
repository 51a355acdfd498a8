// Package nn provides the small feed-forward and recurrent network primitives
// shared by the classifier, autoencoder and sequence models. Everything is
// plain SGD with ReLU hidden layers; the output delta pred-target covers
// sigmoid+BCE, softmax+CE and identity+MSE alike.
package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// Activation selects the output layer.
type Activation int

const (
	ActIdentity Activation = iota
	ActSigmoid
	ActSoftmax
)

// Config sizes a feed-forward network.
type Config struct {
	Inputs       int
	Hidden       []int
	Outputs      int
	Output       Activation
	LearningRate float64
	Seed         int64
}

// TrainOpts controls a Fit call.
type TrainOpts struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64 // fraction held out for early stopping
	Patience        int     // epochs without validation improvement before stop
}

// Network is a dense feed-forward network.
type Network struct {
	Sizes   []int
	Weights [][][]float64 // [layer][out][in]
	Biases  [][]float64   // [layer][out]
	Out     Activation
	LR      float64

	rng *rand.Rand
}

// New builds a network with Xavier-style initialization from the seed.
func New(cfg Config) *Network {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	sizes := append([]int{cfg.Inputs}, cfg.Hidden...)
	sizes = append(sizes, cfg.Outputs)

	n := &Network{
		Sizes: sizes,
		Out:   cfg.Output,
		LR:    cfg.LearningRate,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	n.Weights = make([][][]float64, len(sizes)-1)
	n.Biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		scale := math.Sqrt(2.0 / float64(in))
		n.Weights[l] = make([][]float64, out)
		n.Biases[l] = make([]float64, out)
		for j := 0; j < out; j++ {
			n.Weights[l][j] = make([]float64, in)
			for i := 0; i < in; i++ {
				n.Weights[l][j][i] = n.rng.NormFloat64() * scale
			}
		}
	}
	return n
}

// Predict runs a forward pass.
func (n *Network) Predict(x []float64) []float64 {
	acts := n.forward(x)
	return acts[len(acts)-1]
}

// forward returns the activation of every layer, input included.
func (n *Network) forward(x []float64) [][]float64 {
	acts := make([][]float64, len(n.Sizes))
	acts[0] = x
	for l := range n.Weights {
		last := l == len(n.Weights)-1
		out := make([]float64, len(n.Weights[l]))
		for j := range n.Weights[l] {
			z := n.Biases[l][j]
			for i, w := range n.Weights[l][j] {
				z += w * acts[l][i]
			}
			if last {
				out[j] = z
			} else if z > 0 {
				out[j] = z // ReLU
			}
		}
		if last {
			applyOutput(n.Out, out)
		}
		acts[l+1] = out
	}
	return acts
}

func applyOutput(a Activation, z []float64) {
	switch a {
	case ActSigmoid:
		for i, v := range z {
			z[i] = 1.0 / (1.0 + math.Exp(-v))
		}
	case ActSoftmax:
		max := z[0]
		for _, v := range z {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for i, v := range z {
			z[i] = math.Exp(v - max)
			sum += z[i]
		}
		for i := range z {
			z[i] /= sum
		}
	}
}

// Fit trains with minibatch SGD and early stopping on a validation split.
// A NaN loss is returned as an error, never masked.
func (n *Network) Fit(X, Y [][]float64, opts TrainOpts) error {
	if len(X) == 0 || len(X) != len(Y) {
		return fmt.Errorf("nn: bad training set: %d inputs, %d targets", len(X), len(Y))
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 100
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Patience <= 0 {
		opts.Patience = 10
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(1)) // deserialized network
	}

	idx := n.rng.Perm(len(X))
	nVal := int(opts.ValidationSplit * float64(len(X)))
	if nVal >= len(X) {
		nVal = len(X) - 1
	}
	valIdx, trainIdx := idx[:nVal], idx[nVal:]

	best := math.Inf(1)
	var bestW [][][]float64
	var bestB [][]float64
	stale := 0

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		order := n.rng.Perm(len(trainIdx))
		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			for _, k := range order[start:end] {
				i := trainIdx[k]
				n.step(X[i], Y[i])
			}
		}

		loss := n.lossOver(X, Y, trainIdx)
		if nVal > 0 {
			loss = n.lossOver(X, Y, valIdx)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("nn: loss diverged at epoch %d", epoch)
		}
		if loss < best-1e-9 {
			best = loss
			bestW, bestB = n.snapshot()
			stale = 0
		} else {
			stale++
			if stale >= opts.Patience {
				break
			}
		}
	}

	if bestW != nil {
		n.Weights, n.Biases = bestW, bestB
	}
	return nil
}

// step runs one backprop update for a single sample.
func (n *Network) step(x, y []float64) {
	acts := n.forward(x)
	L := len(n.Weights)

	deltas := make([][]float64, L)
	out := acts[L]
	deltas[L-1] = make([]float64, len(out))
	for j := range out {
		deltas[L-1][j] = out[j] - y[j]
	}

	for l := L - 2; l >= 0; l-- {
		deltas[l] = make([]float64, len(n.Weights[l]))
		for i := range deltas[l] {
			if acts[l+1][i] <= 0 {
				continue // ReLU gate
			}
			sum := 0.0
			for j := range n.Weights[l+1] {
				sum += n.Weights[l+1][j][i] * deltas[l+1][j]
			}
			deltas[l][i] = sum
		}
	}

	for l := 0; l < L; l++ {
		for j := range n.Weights[l] {
			d := n.LR * deltas[l][j]
			if d == 0 {
				continue
			}
			for i := range n.Weights[l][j] {
				n.Weights[l][j][i] -= d * acts[l][i]
			}
			n.Biases[l][j] -= d
		}
	}
}

// lossOver computes the loss for the given sample indices.
func (n *Network) lossOver(X, Y [][]float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	total := 0.0
	for _, i := range idx {
		pred := n.Predict(X[i])
		total += sampleLoss(n.Out, pred, Y[i])
	}
	return total / float64(len(idx))
}

func sampleLoss(a Activation, pred, y []float64) float64 {
	const eps = 1e-12
	loss := 0.0
	switch a {
	case ActSigmoid:
		for j := range pred {
			loss -= y[j]*math.Log(pred[j]+eps) + (1-y[j])*math.Log(1-pred[j]+eps)
		}
	case ActSoftmax:
		for j := range pred {
			if y[j] > 0 {
				loss -= y[j] * math.Log(pred[j]+eps)
			}
		}
	default:
		for j := range pred {
			d := pred[j] - y[j]
			loss += 0.5 * d * d
		}
	}
	return loss
}

func (n *Network) snapshot() ([][][]float64, [][]float64) {
	w := make([][][]float64, len(n.Weights))
	b := make([][]float64, len(n.Biases))
	for l := range n.Weights {
		w[l] = make([][]float64, len(n.Weights[l]))
		for j := range n.Weights[l] {
			w[l][j] = append([]float64(nil), n.Weights[l][j]...)
		}
		b[l] = append([]float64(nil), n.Biases[l]...)
	}
	return w, b
}

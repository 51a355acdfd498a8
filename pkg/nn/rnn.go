package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// RecurrentConfig sizes a stacked Elman network with a dense head.
type RecurrentConfig struct {
	InputDim     int
	Hidden       []int // recurrent layer sizes, bottom first
	OutDim       int
	Output       Activation
	LearningRate float64
	Seed         int64
}

// Recurrent is a stack of tanh Elman layers followed by a dense output head.
// It consumes a whole window and emits one vector from the final timestep.
type Recurrent struct {
	InputDim int
	Hidden   []int
	OutDim   int
	Out      Activation
	LR       float64

	Wx    [][][]float64 // [layer][unit][input]
	Wh    [][][]float64 // [layer][unit][unit]
	B     [][]float64
	HeadW [][]float64
	HeadB []float64

	rng *rand.Rand
}

// NewRecurrent builds the stack with seeded initialization.
func NewRecurrent(cfg RecurrentConfig) *Recurrent {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	r := &Recurrent{
		InputDim: cfg.InputDim,
		Hidden:   append([]int(nil), cfg.Hidden...),
		OutDim:   cfg.OutDim,
		Out:      cfg.Output,
		LR:       cfg.LearningRate,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}

	in := cfg.InputDim
	for _, units := range cfg.Hidden {
		scale := math.Sqrt(1.0 / float64(in+units))
		wx := make([][]float64, units)
		wh := make([][]float64, units)
		for j := 0; j < units; j++ {
			wx[j] = r.randRow(in, scale)
			wh[j] = r.randRow(units, scale)
		}
		r.Wx = append(r.Wx, wx)
		r.Wh = append(r.Wh, wh)
		r.B = append(r.B, make([]float64, units))
		in = units
	}

	scale := math.Sqrt(1.0 / float64(in))
	r.HeadW = make([][]float64, cfg.OutDim)
	for j := 0; j < cfg.OutDim; j++ {
		r.HeadW[j] = r.randRow(in, scale)
	}
	r.HeadB = make([]float64, cfg.OutDim)
	return r
}

func (r *Recurrent) randRow(n int, scale float64) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = r.rng.NormFloat64() * scale
	}
	return row
}

// Predict runs a window through the stack.
func (r *Recurrent) Predict(seq [][]float64) []float64 {
	states := r.forward(seq)
	return r.head(states[len(r.Hidden)-1][len(seq)-1])
}

// forward returns hidden states indexed [layer][timestep][unit].
func (r *Recurrent) forward(seq [][]float64) [][][]float64 {
	T := len(seq)
	states := make([][][]float64, len(r.Hidden))
	for l := range states {
		states[l] = make([][]float64, T)
	}

	for t := 0; t < T; t++ {
		input := seq[t]
		for l, units := range r.Hidden {
			h := make([]float64, units)
			var prev []float64
			if t > 0 {
				prev = states[l][t-1]
			}
			for j := 0; j < units; j++ {
				z := r.B[l][j]
				for i, w := range r.Wx[l][j] {
					z += w * input[i]
				}
				if prev != nil {
					for i, w := range r.Wh[l][j] {
						z += w * prev[i]
					}
				}
				h[j] = math.Tanh(z)
			}
			states[l][t] = h
			input = h
		}
	}
	return states
}

func (r *Recurrent) head(h []float64) []float64 {
	out := make([]float64, r.OutDim)
	for j := range out {
		z := r.HeadB[j]
		for i, w := range r.HeadW[j] {
			z += w * h[i]
		}
		out[j] = z
	}
	applyOutput(r.Out, out)
	return out
}

// Fit trains with per-sequence BPTT and early stopping on a validation split.
func (r *Recurrent) Fit(seqs [][][]float64, targets [][]float64, opts TrainOpts) error {
	if len(seqs) == 0 || len(seqs) != len(targets) {
		return fmt.Errorf("nn: bad sequence set: %d windows, %d targets", len(seqs), len(targets))
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 50
	}
	if opts.Patience <= 0 {
		opts.Patience = 10
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(1))
	}

	idx := r.rng.Perm(len(seqs))
	nVal := int(opts.ValidationSplit * float64(len(seqs)))
	if nVal >= len(seqs) {
		nVal = len(seqs) - 1
	}
	valIdx, trainIdx := idx[:nVal], idx[nVal:]

	best := math.Inf(1)
	stale := 0

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for _, k := range r.rng.Perm(len(trainIdx)) {
			i := trainIdx[k]
			r.step(seqs[i], targets[i])
		}

		eval := trainIdx
		if nVal > 0 {
			eval = valIdx
		}
		loss := 0.0
		for _, i := range eval {
			loss += sampleLoss(r.Out, r.Predict(seqs[i]), targets[i])
		}
		loss /= float64(len(eval))

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("nn: recurrent loss diverged at epoch %d", epoch)
		}
		if loss < best-1e-9 {
			best = loss
			stale = 0
		} else {
			stale++
			if stale >= opts.Patience {
				break
			}
		}
	}
	return nil
}

// step runs truncated BPTT over one window.
func (r *Recurrent) step(seq [][]float64, y []float64) {
	T := len(seq)
	L := len(r.Hidden)
	states := r.forward(seq)
	pred := r.head(states[L-1][T-1])

	dOut := make([]float64, r.OutDim)
	for j := range dOut {
		dOut[j] = pred[j] - y[j]
	}

	// dh[l][t] accumulates the gradient reaching layer l at timestep t.
	dh := make([][][]float64, L)
	for l, units := range r.Hidden {
		dh[l] = make([][]float64, T)
		for t := range dh[l] {
			dh[l][t] = make([]float64, units)
		}
	}

	// Head feeds only from the last timestep of the top layer.
	for j := range r.HeadW {
		d := r.LR * dOut[j]
		for i := range r.HeadW[j] {
			dh[L-1][T-1][i] += r.HeadW[j][i] * dOut[j]
			r.HeadW[j][i] -= d * states[L-1][T-1][i]
		}
		r.HeadB[j] -= d
	}

	for t := T - 1; t >= 0; t-- {
		for l := L - 1; l >= 0; l-- {
			h := states[l][t]
			input := seq[t]
			if l > 0 {
				input = states[l-1][t]
			}
			for j := range h {
				dz := dh[l][t][j] * (1 - h[j]*h[j])
				if dz == 0 {
					continue
				}
				if t > 0 {
					for i, w := range r.Wh[l][j] {
						dh[l][t-1][i] += w * dz
					}
				}
				if l > 0 {
					for i, w := range r.Wx[l][j] {
						dh[l-1][t][i] += w * dz
					}
				}
				d := r.LR * dz
				for i := range r.Wx[l][j] {
					r.Wx[l][j][i] -= d * input[i]
				}
				if t > 0 {
					for i := range r.Wh[l][j] {
						r.Wh[l][j][i] -= d * states[l][t-1][i]
					}
				}
				r.B[l][j] -= d
			}
		}
	}
}

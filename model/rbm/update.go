// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rbm

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/rbm/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Delta is a parameter change produced by one contrastive divergence step.
type Delta struct {
	W *mat.Dense // (n_hidden, n_visible)
	A *mat.Dense // (1, n_hidden)
	B *mat.Dense // (1, n_visible)
}

// ContrastiveDivergence computes the CD-k update from the data statistics (v0, ph0)
// and the reconstruction statistics (vk, phk):
//
//	dW = (v0^T ph0 - vk^T phk)^T
//	db = sum_rows(v0 - vk)
//	da = sum_rows(ph0 - phk)
//
// Sums are not averaged over the batch and no learning rate is applied.
func ContrastiveDivergence(v0, vk, ph0, phk *mat.Dense) *Delta {
	var positive, negative mat.Dense
	positive.Mul(ph0.T(), v0)
	negative.Mul(phk.T(), vk)
	var dW mat.Dense
	dW.Sub(&positive, &negative)
	return &Delta{
		W: &dW,
		A: sumRowsOfDiff(ph0, phk),
		B: sumRowsOfDiff(v0, vk),
	}
}

func sumRowsOfDiff(x, y *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	sum := make([]float64, c)
	for i := 0; i < r; i++ {
		floats.Add(sum, x.RawRowView(i))
		floats.Sub(sum, y.RawRowView(i))
	}
	return mat.NewDense(1, c, sum)
}

// ApplyUpdate adds a delta to the parameters. It is the only place W, a and b
// are written after Init.
func (rbm *RBM) ApplyUpdate(delta *Delta) {
	rbm.W.Add(rbm.W, delta.W)
	rbm.A.Add(rbm.A, delta.A)
	rbm.B.Add(rbm.B, delta.B)
}

// Update applies one contrastive divergence step.
func (rbm *RBM) Update(v0, vk, ph0, phk *mat.Dense) {
	rbm.ApplyUpdate(ContrastiveDivergence(v0, vk, ph0, phk))
}

// unobservedMask marks row-major indices of cells equal to dataset.Unobserved.
func unobservedMask(v0 *mat.Dense) *bitset.BitSet {
	r, c := v0.Dims()
	mask := bitset.New(uint(r * c))
	for i := 0; i < r; i++ {
		for j, x := range v0.RawRowView(i) {
			if x < 0 {
				mask.Set(uint(i*c + j))
			}
		}
	}
	return mask
}

func clampMasked(vk, v0 *mat.Dense, mask *bitset.BitSet) {
	_, c := v0.Dims()
	for i, e := mask.NextSet(0); e; i, e = mask.NextSet(i + 1) {
		row, col := int(i)/c, int(i)%c
		vk.Set(row, col, v0.At(row, col))
	}
}

// Clamp restores every cell of vk where v0 is unobserved.
func Clamp(vk, v0 *mat.Dense) {
	clampMasked(vk, v0, unobservedMask(v0))
}

// MaskedMAE is the mean absolute difference between target and pred over cells
// observed in target. ok is false if target has no observed cell.
func MaskedMAE(target, pred mat.Matrix) (mae float64, ok bool) {
	r, c := target.Dims()
	var sum float64
	var count int
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if t := target.At(i, j); t >= dataset.Dislike {
				sum += math.Abs(t - pred.At(i, j))
				count++
			}
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

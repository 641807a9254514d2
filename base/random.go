// Copyright 2020 gorse Project Authors
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

package base

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandomGenerator is the random generator for gorse.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// NormalVector64 makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector64(size int, mean, stdDev float64) []float64 {
	ret := make([]float64, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.NormFloat64()*stdDev + mean
	}
	return ret
}

// NormalMatrix64 makes a dense matrix filled with normal random floats.
// Values are drawn in row-major order.
func (rng RandomGenerator) NormalMatrix64(row, col int, mean, stdDev float64) *mat.Dense {
	return mat.NewDense(row, col, rng.NormalVector64(row*col, mean, stdDev))
}

// Bernoulli returns 1 with probability p and 0 otherwise.
func (rng RandomGenerator) Bernoulli(p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// BernoulliMatrix draws an independent Bernoulli sample for every cell of p.
// Cells are visited in row-major order, so a fixed seed yields a fixed sample.
func (rng RandomGenerator) BernoulliMatrix(p mat.Matrix) *mat.Dense {
	r, c := p.Dims()
	ret := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ret.Set(i, j, rng.Bernoulli(p.At(i, j)))
		}
	}
	return ret
}

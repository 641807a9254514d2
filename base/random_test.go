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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalVector64(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalVector64(1000, 1, 2)
	assert.False(t, math.Abs(stat.Mean(vec, nil)-1) > randomEpsilon)
	assert.False(t, math.Abs(stat.StdDev(vec, nil)-2) > randomEpsilon)
}

func TestRandomGenerator_NormalMatrix64(t *testing.T) {
	m := NewRandomGenerator(0).NormalMatrix64(3, 4, 0, 1)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	// same seed, same matrix
	assert.True(t, mat.Equal(m, NewRandomGenerator(0).NormalMatrix64(3, 4, 0, 1)))
	assert.False(t, mat.Equal(m, NewRandomGenerator(1).NormalMatrix64(3, 4, 0, 1)))
}

func TestRandomGenerator_Bernoulli(t *testing.T) {
	rng := NewRandomGenerator(0)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0.0, rng.Bernoulli(0))
		assert.Equal(t, 1.0, rng.Bernoulli(1))
	}
	var sum float64
	for i := 0; i < 10000; i++ {
		sum += rng.Bernoulli(0.3)
	}
	assert.InDelta(t, 0.3, sum/10000, 0.02)
}

func TestRandomGenerator_BernoulliMatrix(t *testing.T) {
	p := mat.NewDense(2, 3, []float64{0, 1, 0, 1, 0, 1})
	sample := NewRandomGenerator(0).BernoulliMatrix(p)
	assert.True(t, mat.Equal(p, sample))
}

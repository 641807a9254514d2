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

	"github.com/gorse-io/rbm/base"
	"github.com/gorse-io/rbm/common/heap"
	"github.com/gorse-io/rbm/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RBM is a restricted Boltzmann machine over binary preferences. Visible units are
// items and hidden units are latent features. The energy of a joint state is
//
//	E(v, h) = - a h^T - b v^T - h W v^T
//
// so both conditionals factorize into independent sigmoid units.
//
// Hyper-parameters:
//
//	NHidden     - The number of hidden units. Default is 100.
//	NEpochs     - The number of training epochs. Default is 10.
//	BatchSize   - The number of users in a batch. Default is 100.
//	GibbsSteps  - The number of Gibbs steps of contrastive divergence. Default is 10.
//	InitMean    - The mean of initial parameters. Default is 0.
//	InitStdDev  - The standard deviation of initial parameters. Default is 1.
//	RandomState - The seed of the random generator. Default is 0.
type RBM struct {
	model.BaseModel
	// Model parameters
	W *mat.Dense // weights (n_hidden, n_visible)
	A *mat.Dense // hidden bias (1, n_hidden)
	B *mat.Dense // visible bias (1, n_visible)
	// Hyper parameters
	nHidden    int
	nEpochs    int
	batchSize  int
	gibbsSteps int
	initMean   float64
	initStdDev float64
}

// NewRBM creates a RBM model.
func NewRBM(params model.Params) *RBM {
	rbm := new(RBM)
	rbm.SetParams(params)
	return rbm
}

// SetParams sets hyper-parameters of the RBM model.
func (rbm *RBM) SetParams(params model.Params) {
	rbm.BaseModel.SetParams(params)
	rbm.nHidden = rbm.Params.GetInt(model.NHidden, 100)
	rbm.nEpochs = rbm.Params.GetInt(model.NEpochs, 10)
	rbm.batchSize = rbm.Params.GetInt(model.BatchSize, 100)
	rbm.gibbsSteps = rbm.Params.GetInt(model.GibbsSteps, 10)
	rbm.initMean = rbm.Params.GetFloat64(model.InitMean, 0)
	rbm.initStdDev = rbm.Params.GetFloat64(model.InitStdDev, 1)
}

// Init draws W, a and b from a gaussian distribution. W is drawn first, then a,
// then b, each in row-major order.
func (rbm *RBM) Init(nVisible int) {
	rng := rbm.GetRandomGenerator()
	rbm.W = rng.NormalMatrix64(rbm.nHidden, nVisible, rbm.initMean, rbm.initStdDev)
	rbm.A = rng.NormalMatrix64(1, rbm.nHidden, rbm.initMean, rbm.initStdDev)
	rbm.B = rng.NormalMatrix64(1, nVisible, rbm.initMean, rbm.initStdDev)
}

// Clear model weights.
func (rbm *RBM) Clear() {
	rbm.W = nil
	rbm.A = nil
	rbm.B = nil
}

// Invalid returns true if the model has not been initialized.
func (rbm *RBM) Invalid() bool {
	return rbm == nil || rbm.W == nil || rbm.A == nil || rbm.B == nil
}

// CountVisible returns the number of visible units.
func (rbm *RBM) CountVisible() int {
	_, c := rbm.W.Dims()
	return c
}

// CountHidden returns the number of hidden units.
func (rbm *RBM) CountHidden() int {
	r, _ := rbm.W.Dims()
	return r
}

// SampleHidden computes p(h|v) = sigmoid(v W^T + a) for a batch of visible states
// and draws a binary sample from it.
func (rbm *RBM) SampleHidden(v mat.Matrix, rng base.RandomGenerator) (ph, h *mat.Dense) {
	ph = rbm.probHidden(v)
	return ph, rng.BernoulliMatrix(ph)
}

// SampleVisible computes p(v|h) = sigmoid(h W + b) for a batch of hidden states
// and draws a binary sample from it.
func (rbm *RBM) SampleVisible(h mat.Matrix, rng base.RandomGenerator) (pv, v *mat.Dense) {
	pv = rbm.probVisible(h)
	return pv, rng.BernoulliMatrix(pv)
}

func (rbm *RBM) probHidden(v mat.Matrix) *mat.Dense {
	var activation mat.Dense
	activation.Mul(v, rbm.W.T())
	return sigmoidWithBias(&activation, rbm.A)
}

func (rbm *RBM) probVisible(h mat.Matrix) *mat.Dense {
	var activation mat.Dense
	activation.Mul(h, rbm.W)
	return sigmoidWithBias(&activation, rbm.B)
}

// sigmoidWithBias broadcasts the bias row over every row of activation and squashes
// the result in place.
func sigmoidWithBias(activation, bias *mat.Dense) *mat.Dense {
	r, _ := activation.Dims()
	for i := 0; i < r; i++ {
		floats.Add(activation.RawRowView(i), bias.RawRowView(0))
	}
	activation.Apply(func(_, _ int, x float64) float64 {
		return sigmoid(x)
	}, activation)
	return activation
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Predict reconstructs a visible row with mean-field probabilities (v -> p(h|v) ->
// p(v|h)). Nothing is sampled, so the result is deterministic.
func (rbm *RBM) Predict(v []float64) []float64 {
	row := mat.NewDense(1, len(v), v)
	pv := rbm.probVisible(rbm.probHidden(row))
	return pv.RawRowView(0)
}

// Recommend returns at most n indices of items unobserved in v, ordered by
// decreasing reconstructed like probability.
func (rbm *RBM) Recommend(v []float64, n int) []int {
	pv := rbm.Predict(v)
	filter := heap.NewTopKFilter[int, float64](n)
	for i, p := range pv {
		if v[i] < 0 {
			filter.Push(i, p)
		}
	}
	return filter.PopAllValues()
}

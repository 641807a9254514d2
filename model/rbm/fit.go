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
	"context"
	"fmt"
	"time"

	"github.com/gorse-io/rbm/base"
	"github.com/gorse-io/rbm/base/log"
	"github.com/gorse-io/rbm/base/progress"
	"github.com/gorse-io/rbm/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrNoEvaluableData is returned when no observed cell takes part in a loss.
var ErrNoEvaluableData = errors.New("no evaluable data")

// Score is an averaged mean absolute error. Count is the number of batches (in
// training) or users (in evaluation) that contributed to Loss.
type Score struct {
	Loss  float64
	Count int
}

type FitConfig struct {
	// Verbose is the period (in epochs) of info logs. Other epochs are logged at
	// debug level. Zero logs every epoch at info level.
	Verbose int
	// PartialBatch trains on the trailing users that do not fill a whole batch.
	PartialBatch bool
	// Observer receives the score of every epoch.
	Observer func(epoch int, score Score)
	// BatchObserver receives the loss of every batch with observed cells.
	BatchObserver func(epoch, batch int, loss float64)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Verbose: 1}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetPartialBatch(partialBatch bool) *FitConfig {
	config.PartialBatch = partialBatch
	return config
}

func (config *FitConfig) SetObserver(observer func(epoch int, score Score)) *FitConfig {
	config.Observer = observer
	return config
}

type batch struct {
	start, end int
}

// split partitions user rows into contiguous batches of batchSize rows. The
// trailing short batch is kept only if partial is set.
func split(nUsers, batchSize int, partial bool) []batch {
	var batches []batch
	start := 0
	for ; start+batchSize <= nUsers; start += batchSize {
		batches = append(batches, batch{start: start, end: start + batchSize})
	}
	if partial && start < nUsers {
		batches = append(batches, batch{start: start, end: nUsers})
	}
	return batches
}

// Fit initializes parameters and trains the model by contrastive divergence on the
// training matrix. The returned score is the loss of the last epoch.
func (rbm *RBM) Fit(ctx context.Context, d *dataset.Dataset, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	train := d.Train()
	batches := split(d.CountUsers(), rbm.batchSize, config.PartialBatch)
	if len(batches) == 0 {
		return Score{}, errors.NotValidf("%d users less than batch size %d", d.CountUsers(), rbm.batchSize)
	}
	if dataset.CountObserved(train) == 0 {
		return Score{}, errors.NotValidf("training matrix without observed cells")
	}
	log.Logger().Info("fit rbm",
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_items", d.CountItems()),
		zap.Int("train_set_size", dataset.CountObserved(train)),
		zap.Int("n_batches", len(batches)),
		zap.String("params", rbm.GetParams().ToString()),
		zap.Int("verbose", config.Verbose),
		zap.Bool("partial_batch", config.PartialBatch))
	rbm.Init(d.CountItems())
	rng := rbm.GetRandomGenerator()

	var score Score
	_, span := progress.Start(ctx, "RBM.Fit", rbm.nEpochs)
	for epoch := 1; epoch <= rbm.nEpochs; epoch++ {
		fitStart := time.Now()
		var trainLoss float64
		var count int
		for i, b := range batches {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return Score{}, errors.Trace(err)
			}
			v0 := train.Slice(b.start, b.end, 0, d.CountItems()).(*mat.Dense)
			if loss, ok := rbm.fitBatch(v0, rng); ok {
				trainLoss += loss
				count++
				if config.BatchObserver != nil {
					config.BatchObserver(epoch, i, loss)
				}
			}
		}
		if count == 0 {
			err := errors.Annotatef(ErrNoEvaluableData, "epoch %d", epoch)
			span.Fail(err)
			return Score{}, err
		}
		score = Score{Loss: trainLoss / float64(count), Count: count}
		fields := []zap.Field{
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float64("loss", score.Loss),
		}
		if config.Verbose <= 0 || epoch%config.Verbose == 0 || epoch == rbm.nEpochs {
			log.Logger().Info(fmt.Sprintf("fit rbm %v/%v", epoch, rbm.nEpochs), fields...)
		} else {
			log.Logger().Debug(fmt.Sprintf("fit rbm %v/%v", epoch, rbm.nEpochs), fields...)
		}
		if config.Observer != nil {
			config.Observer(epoch, score)
		}
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit rbm complete", zap.Float64("loss", score.Loss))
	return score, nil
}

// fitBatch runs CD-k on one batch and returns the reconstruction loss over the
// observed cells. Parameters are updated even if no cell is observed.
func (rbm *RBM) fitBatch(v0 *mat.Dense, rng base.RandomGenerator) (float64, bool) {
	mask := unobservedMask(v0)
	vk := mat.DenseCopyOf(v0)
	ph0, _ := rbm.SampleHidden(v0, rng)
	for k := 0; k < rbm.gibbsSteps; k++ {
		_, hk := rbm.SampleHidden(vk, rng)
		_, vk = rbm.SampleVisible(hk, rng)
		clampMasked(vk, v0, mask)
	}
	phk, _ := rbm.SampleHidden(vk, rng)
	rbm.Update(v0, vk, ph0, phk)
	return MaskedMAE(v0, vk)
}

// Evaluate reconstructs every user from the training row with one h -> v pass and
// scores the sample against the observed cells of the test row. Users without
// test ratings are skipped.
func (rbm *RBM) Evaluate(d *dataset.Dataset, rng base.RandomGenerator) (Score, error) {
	if rbm.Invalid() {
		return Score{}, errors.NotValidf("untrained model")
	}
	if rbm.CountVisible() != d.CountItems() {
		return Score{}, errors.NotValidf("model with %d visible units on %d items", rbm.CountVisible(), d.CountItems())
	}
	var testLoss float64
	var count int
	nItems := d.CountItems()
	for u := 0; u < d.CountUsers(); u++ {
		vt := d.Test().Slice(u, u+1, 0, nItems)
		if dataset.CountObserved(vt) == 0 {
			continue
		}
		v := d.Train().Slice(u, u+1, 0, nItems)
		_, h := rbm.SampleHidden(v, rng)
		_, reconstructed := rbm.SampleVisible(h, rng)
		loss, _ := MaskedMAE(vt, reconstructed)
		testLoss += loss
		count++
	}
	if count == 0 {
		return Score{}, errors.Trace(ErrNoEvaluableData)
	}
	score := Score{Loss: testLoss / float64(count), Count: count}
	log.Logger().Info("evaluate rbm", zap.Int("n_users", count), zap.Float64("loss", score.Loss))
	return score, nil
}

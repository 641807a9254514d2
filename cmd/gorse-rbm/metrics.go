// Copyright 2026 gorse Project Authors
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

package main

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJob = "gorse_rbm"

var (
	EpochTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gorse",
		Subsystem: "rbm",
		Name:      "epoch_total",
	})
	TrainLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "rbm",
		Name:      "train_loss",
	})
	TestLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "rbm",
		Name:      "test_loss",
	})
	FitSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "rbm",
		Name:      "fit_seconds",
	})
)

// pushMetrics pushes losses of a run to a Prometheus Pushgateway.
func pushMetrics(url string) error {
	err := push.New(url, pushJob).
		Collector(EpochTotal).
		Collector(TrainLoss).
		Collector(TestLoss).
		Collector(FitSeconds).
		Push()
	return errors.Annotatef(err, "push metrics to %s", url)
}

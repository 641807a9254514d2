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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorse-io/rbm/base/log"
	"github.com/gorse-io/rbm/base/progress"
	"github.com/gorse-io/rbm/cmd/version"
	"github.com/gorse-io/rbm/config"
	"github.com/gorse-io/rbm/dataset"
	"github.com/gorse-io/rbm/model/rbm"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "gorse-rbm",
	Short: "Restricted Boltzmann machine for binary preferences.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a RBM and evaluate it on the test split",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		d, err := dataset.LoadDataset(ctx, &cfg.Data)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		showProgress, _ := cmd.Flags().GetBool("progress")
		result, err := train(ctx, cfg, d, showProgress)
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		renderEpochs(os.Stdout, result)
		// save model
		if path, _ := cmd.Flags().GetString("save"); path != "" {
			if err = saveModel(path, result.Model); err != nil {
				log.Logger().Fatal("failed to save model", zap.Error(err))
			}
			log.Logger().Info("save model", zap.String("path", path))
		}
		// push metrics
		if url, _ := cmd.Flags().GetString("push-gateway"); url != "" {
			if err = pushMetrics(url); err != nil {
				log.Logger().Error("failed to push metrics", zap.Error(err))
			}
		}
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend unrated items to a user with a trained RBM",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		modelPath, _ := cmd.Flags().GetString("model")
		m, err := loadModel(modelPath)
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		d, err := dataset.LoadDataset(context.Background(), &cfg.Data)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		userId, _ := cmd.Flags().GetInt("user")
		n, _ := cmd.Flags().GetInt("number")
		items, scores, err := recommend(m, d, userId, n)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Error(err))
		}
		renderRecommendations(os.Stdout, items, scores)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().Bool("debug", false, "use debug log mode")
	addConfigFlags(rootCmd.PersistentFlags())
	trainCmd.Flags().String("save", "", "path to save the trained model")
	trainCmd.Flags().String("push-gateway", "", "Prometheus Pushgateway URL")
	trainCmd.Flags().Bool("progress", false, "show progress bar")
	recommendCmd.Flags().String("model", "", "trained model path")
	recommendCmd.Flags().Int("user", 1, "user id")
	recommendCmd.Flags().IntP("number", "n", 10, "number of recommendations")
	_ = recommendCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(trainCmd, recommendCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}

func addConfigFlags(flagSet *pflag.FlagSet) {
	flagSet.StringP("config", "c", "", "configuration file path")
	flagSet.String("builtin", "", "built-in dataset (ml-100k)")
	flagSet.String("train", "", "training split path")
	flagSet.String("test", "", "test split path")
	flagSet.String("sep", "", "separator of rating files")
	flagSet.Int64("seed", 0, "random seed")
}

// loadConfig loads the configuration file and applies command line overrides.
func loadConfig(flagSet *pflag.FlagSet) (*config.Config, error) {
	path, _ := flagSet.GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if flagSet.Changed("builtin") {
		cfg.Data.Builtin, _ = flagSet.GetString("builtin")
	}
	if flagSet.Changed("train") || flagSet.Changed("test") {
		cfg.Data.Builtin = ""
		if flagSet.Changed("train") {
			cfg.Data.TrainPath, _ = flagSet.GetString("train")
		}
		if flagSet.Changed("test") {
			cfg.Data.TestPath, _ = flagSet.GetString("test")
		}
	}
	if flagSet.Changed("sep") {
		cfg.Data.Separator, _ = flagSet.GetString("sep")
	}
	if flagSet.Changed("seed") {
		cfg.Model.RandomState, _ = flagSet.GetInt64("seed")
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

type trainResult struct {
	Model      *rbm.RBM
	EpochLoss  []float64
	TrainScore rbm.Score
	TestScore  rbm.Score
}

// train fits a RBM on the dataset and evaluates it with the same random stream.
func train(ctx context.Context, cfg *config.Config, d *dataset.Dataset, showProgress bool) (*trainResult, error) {
	result := &trainResult{Model: rbm.NewRBM(cfg.Model.Params())}
	tracer := progress.NewTracer("gorse-rbm")
	ctx, span := tracer.Start(ctx, "Train", 2)
	defer func() {
		for _, p := range tracer.List() {
			log.Logger().Debug("progress", zap.String("name", p.Name), zap.String("status", string(p.Status)),
				zap.Int("count", p.Count), zap.Int("total", p.Total))
		}
	}()
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(cfg.Model.NEpochs,
			progressbar.OptionSetDescription("Training"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish())
	}
	fitConfig := rbm.NewFitConfig().
		SetVerbose(cfg.Fit.Verbose).
		SetPartialBatch(cfg.Fit.PartialBatch).
		SetObserver(func(epoch int, score rbm.Score) {
			result.EpochLoss = append(result.EpochLoss, score.Loss)
			EpochTotal.Inc()
			TrainLoss.Set(score.Loss)
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	start := time.Now()
	var err error
	if result.TrainScore, err = result.Model.Fit(ctx, d, fitConfig); err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.Add(1)
	FitSeconds.Set(time.Since(start).Seconds())
	if bar != nil {
		_ = bar.Finish()
	}
	if result.TestScore, err = result.Model.Evaluate(d, result.Model.GetRandomGenerator()); err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	TestLoss.Set(result.TestScore.Loss)
	log.Logger().Info("test loss", zap.Float64("loss", result.TestScore.Loss), zap.Int("n_users", result.TestScore.Count))
	return result, nil
}

// recommend returns top n unrated item ids of a user (ids start from 1) and their
// like probabilities.
func recommend(m *rbm.RBM, d *dataset.Dataset, userId, n int) ([]int, []float64, error) {
	if userId < 1 || userId > d.CountUsers() {
		return nil, nil, errors.NotFoundf("user %d", userId)
	}
	if m.CountVisible() != d.CountItems() {
		return nil, nil, errors.NotValidf("model with %d visible units on %d items", m.CountVisible(), d.CountItems())
	}
	row := d.Train().RawRowView(userId - 1)
	v := make([]float64, len(row))
	copy(v, row)
	probs := m.Predict(v)
	indices := m.Recommend(v, n)
	items := make([]int, len(indices))
	scores := make([]float64, len(indices))
	for i, index := range indices {
		items[i] = index + 1
		scores[i] = probs[index]
	}
	return items, scores, nil
}

func saveModel(path string, m *rbm.RBM) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return rbm.MarshalModel(f, m)
}

func loadModel(path string) (*rbm.RBM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return rbm.UnmarshalModel(f)
}

func renderEpochs(w io.Writer, result *trainResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Epoch", "Loss")
	for i, loss := range result.EpochLoss {
		_ = table.Append(strconv.Itoa(i+1), strconv.FormatFloat(loss, 'f', 6, 64))
	}
	_ = table.Append("test", strconv.FormatFloat(result.TestScore.Loss, 'f', 6, 64))
	_ = table.Render()
}

func renderRecommendations(w io.Writer, items []int, scores []float64) {
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Item", "Probability")
	for i := range items {
		_ = table.Append(strconv.Itoa(i+1), strconv.Itoa(items[i]), strconv.FormatFloat(scores[i], 'f', 6, 64))
	}
	_ = table.Render()
}

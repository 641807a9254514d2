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

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/rbm/common/datautil"
	"github.com/gorse-io/rbm/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"

	BuiltinML100K = "ml-100k"
)

// Config is the configuration for training and evaluating an RBM.
type Config struct {
	Data  DataConfig  `mapstructure:"data"`
	Model ModelConfig `mapstructure:"model"`
	Fit   FitConfig   `mapstructure:"fit"`
}

// DataConfig locates the rating splits and the optional catalogs. When Builtin
// is set, paths are resolved inside the downloaded archive.
type DataConfig struct {
	Builtin          string `mapstructure:"builtin" validate:"omitempty,oneof=ml-100k"`
	BaseURL          string `mapstructure:"base_url" validate:"omitempty,url"`
	TrainPath        string `mapstructure:"train_path" validate:"required_without=Builtin"`
	TestPath         string `mapstructure:"test_path" validate:"required_without=Builtin"`
	ItemsPath        string `mapstructure:"items_path"`
	UsersPath        string `mapstructure:"users_path"`
	Separator        string `mapstructure:"separator" validate:"required"`
	CatalogSeparator string `mapstructure:"catalog_separator" validate:"required"`
	Encoding         string `mapstructure:"encoding" validate:"oneof=utf-8 latin-1"`
}

type ModelConfig struct {
	NHidden     int     `mapstructure:"n_hidden" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	GibbsSteps  int     `mapstructure:"gibbs_steps" validate:"gt=0"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std" validate:"gt=0"`
	RandomState int64   `mapstructure:"random_state"`
}

// Params converts the model section to hyper-parameters.
func (c *ModelConfig) Params() model.Params {
	return model.Params{
		model.NHidden:     c.NHidden,
		model.NEpochs:     c.NEpochs,
		model.BatchSize:   c.BatchSize,
		model.GibbsSteps:  c.GibbsSteps,
		model.InitMean:    c.InitMean,
		model.InitStdDev:  c.InitStdDev,
		model.RandomState: c.RandomState,
	}
}

type FitConfig struct {
	// PartialBatch trains on the trailing users that do not fill a whole batch.
	PartialBatch bool `mapstructure:"partial_batch"`
	// Verbose is the period (in epochs) of info logs. Zero logs every epoch.
	Verbose int `mapstructure:"verbose" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Builtin:          BuiltinML100K,
			BaseURL:          datautil.DefaultBaseURL,
			Separator:        "\t",
			CatalogSeparator: "|",
			Encoding:         EncodingLatin1,
		},
		Model: ModelConfig{
			NHidden:     100,
			NEpochs:     10,
			BatchSize:   100,
			GibbsSteps:  10,
			InitMean:    0,
			InitStdDev:  1,
			RandomState: 0,
		},
		Fit: FitConfig{
			PartialBatch: false,
			Verbose:      1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.builtin", defaultConfig.Data.Builtin)
	v.SetDefault("data.base_url", defaultConfig.Data.BaseURL)
	v.SetDefault("data.train_path", defaultConfig.Data.TrainPath)
	v.SetDefault("data.test_path", defaultConfig.Data.TestPath)
	v.SetDefault("data.items_path", defaultConfig.Data.ItemsPath)
	v.SetDefault("data.users_path", defaultConfig.Data.UsersPath)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.catalog_separator", defaultConfig.Data.CatalogSeparator)
	v.SetDefault("data.encoding", defaultConfig.Data.Encoding)
	// [model]
	v.SetDefault("model.n_hidden", defaultConfig.Model.NHidden)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.batch_size", defaultConfig.Model.BatchSize)
	v.SetDefault("model.gibbs_steps", defaultConfig.Model.GibbsSteps)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [fit]
	v.SetDefault("fit.partial_batch", defaultConfig.Fit.PartialBatch)
	v.SetDefault("fit.verbose", defaultConfig.Fit.Verbose)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"data.builtin", "GORSE_RBM_BUILTIN"},
	{"data.train_path", "GORSE_RBM_TRAIN_PATH"},
	{"data.test_path", "GORSE_RBM_TEST_PATH"},
	{"model.n_hidden", "GORSE_RBM_N_HIDDEN"},
	{"model.n_epochs", "GORSE_RBM_N_EPOCHS"},
	{"model.batch_size", "GORSE_RBM_BATCH_SIZE"},
	{"model.gibbs_steps", "GORSE_RBM_GIBBS_STEPS"},
	{"model.random_state", "GORSE_RBM_RANDOM_STATE"},
}

// LoadConfig loads configuration from a TOML file. An empty path yields the
// defaults overridden by environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	conf.Data.preferFiles()
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// preferFiles clears the default built-in dataset once both rating files are
// given explicitly.
func (config *DataConfig) preferFiles() {
	if config.TrainPath != "" && config.TestPath != "" {
		config.Builtin = ""
	}
}

// Validate checks value ranges of every section.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

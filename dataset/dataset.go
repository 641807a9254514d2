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

package dataset

import (
	"context"
	"path/filepath"

	"github.com/gorse-io/rbm/base/log"
	"github.com/gorse-io/rbm/common/datautil"
	"github.com/gorse-io/rbm/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Dataset owns the binarized training and test preference matrices. Both have
// users as rows and items as columns, with identical shapes.
type Dataset struct {
	train *mat.Dense
	test  *mat.Dense
}

// NewDataset wraps two preference matrices. Shapes must agree.
func NewDataset(train, test *mat.Dense) (*Dataset, error) {
	trainUsers, trainItems := train.Dims()
	testUsers, testItems := test.Dims()
	if trainUsers != testUsers || trainItems != testItems {
		return nil, errors.NotValidf("train shape (%d, %d) and test shape (%d, %d) mismatch",
			trainUsers, trainItems, testUsers, testItems)
	}
	return &Dataset{train: train, test: test}, nil
}

// Build creates binarized matrices from rating splits. The shape is derived from
// the maximum ids over both splits.
func Build(train, test []Rating) (*Dataset, error) {
	numUsers, numItems := Shape(train, test)
	if numUsers == 0 || numItems == 0 {
		return nil, errors.NotValidf("empty rating splits")
	}
	trainMatrix, err := BuildMatrix(train, numUsers, numItems)
	if err != nil {
		return nil, errors.Annotate(err, "build train matrix")
	}
	testMatrix, err := BuildMatrix(test, numUsers, numItems)
	if err != nil {
		return nil, errors.Annotate(err, "build test matrix")
	}
	Binarize(trainMatrix)
	Binarize(testMatrix)
	return NewDataset(trainMatrix, testMatrix)
}

func (d *Dataset) Train() *mat.Dense {
	return d.train
}

func (d *Dataset) Test() *mat.Dense {
	return d.test
}

func (d *Dataset) CountUsers() int {
	r, _ := d.train.Dims()
	return r
}

func (d *Dataset) CountItems() int {
	_, c := d.train.Dims()
	return c
}

// LoadDataset reads rating splits (and catalogs if configured) and builds the
// dataset. Catalogs only cross-check the id ranges derived from ratings.
func LoadDataset(ctx context.Context, cfg *config.DataConfig) (*Dataset, error) {
	files, err := resolveFiles(ctx, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	train, err := LoadRatings(files.TrainPath, files.Separator, files.Encoding)
	if err != nil {
		return nil, errors.Trace(err)
	}
	test, err := LoadRatings(files.TestPath, files.Separator, files.Encoding)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d, err := Build(train, test)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = checkCatalog(files.ItemsPath, "items", d.CountItems(), files); err != nil {
		return nil, errors.Trace(err)
	}
	if err = checkCatalog(files.UsersPath, "users", d.CountUsers(), files); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load dataset",
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_items", d.CountItems()),
		zap.Int("train_set_size", CountObserved(d.train)),
		zap.Int("test_set_size", CountObserved(d.test)))
	return d, nil
}

// resolveFiles fills paths of a built-in dataset after downloading it.
func resolveFiles(ctx context.Context, cfg *config.DataConfig) (*config.DataConfig, error) {
	files := *cfg
	if cfg.Builtin == "" {
		return &files, nil
	}
	if cfg.Builtin != config.BuiltinML100K {
		return nil, errors.NotSupportedf("built-in dataset %s", cfg.Builtin)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = datautil.DefaultBaseURL
	}
	log.Logger().Info("use built-in dataset",
		zap.String("name", cfg.Builtin),
		zap.String("cache", datautil.DatasetDir()))
	dir, err := datautil.DownloadAndUnzip(ctx, baseURL, cfg.Builtin)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// MovieLens 100K: tab separated ratings, "|" separated latin-1 catalogs.
	files.TrainPath = filepath.Join(dir, "u1.base")
	files.TestPath = filepath.Join(dir, "u1.test")
	files.ItemsPath = filepath.Join(dir, "u.item")
	files.UsersPath = filepath.Join(dir, "u.user")
	files.Separator = "\t"
	files.CatalogSeparator = "|"
	files.Encoding = config.EncodingLatin1
	return &files, nil
}

func checkCatalog(path, name string, size int, cfg *config.DataConfig) error {
	if path == "" {
		return nil
	}
	maxId, err := LoadCatalog(path, cfg.CatalogSeparator, cfg.Encoding)
	if err != nil {
		return errors.Trace(err)
	}
	if size > maxId {
		log.Logger().Warn("ratings reference ids beyond catalog",
			zap.String("catalog", name),
			zap.Int("catalog_size", maxId),
			zap.Int("rating_size", size))
	}
	return nil
}

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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/rbm/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Encoded preferences.
const (
	Unobserved = -1
	Dislike    = 0
	Like       = 1
)

// LikeThreshold is the lowest raw rating encoded as Like.
const LikeThreshold = 3

// Shape returns the number of users and items covering every id in both splits.
func Shape(train, test []Rating) (numUsers, numItems int) {
	all := append(append([]Rating{}, train...), test...)
	if len(all) == 0 {
		return 0, 0
	}
	numUsers = lo.Max(lo.Map(all, func(r Rating, _ int) int { return r.UserId }))
	numItems = lo.Max(lo.Map(all, func(r Rating, _ int) int { return r.ItemId }))
	return
}

// BuildMatrix scatters raw ratings into a zero-filled (numUsers, numItems) matrix,
// user u at row u-1 and item i at column i-1. If a (user, item) pair appears more
// than once the last rating wins.
func BuildMatrix(ratings []Rating, numUsers, numItems int) (*mat.Dense, error) {
	if numUsers <= 0 || numItems <= 0 {
		return nil, errors.NotValidf("matrix shape (%d, %d)", numUsers, numItems)
	}
	m := mat.NewDense(numUsers, numItems, nil)
	seen := mapset.NewThreadUnsafeSet[[2]int]()
	duplicates := 0
	for _, r := range ratings {
		if r.UserId < 1 || r.UserId > numUsers || r.ItemId < 1 || r.ItemId > numItems {
			return nil, errors.NotValidf("rating (%d, %d) outside of catalog (%d, %d)",
				r.UserId, r.ItemId, numUsers, numItems)
		}
		if !seen.Add([2]int{r.UserId, r.ItemId}) {
			duplicates++
		}
		m.Set(r.UserId-1, r.ItemId-1, float64(r.Rating))
	}
	if duplicates > 0 {
		log.Logger().Warn("duplicate ratings overwritten", zap.Int("duplicates", duplicates))
	}
	return m, nil
}

// Binarize rewrites raw ratings in place: 0 becomes Unobserved, 1 and 2 become
// Dislike and ratings from LikeThreshold up become Like. Every cell is classified
// by its raw value, so the sentinel rewrite always precedes the rating rewrites
// and a raw 1 is never mistaken for an unobserved cell.
func Binarize(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		switch {
		case v == 0:
			return Unobserved
		case v < LikeThreshold:
			return Dislike
		default:
			return Like
		}
	}, m)
}

// CountObserved counts cells that are not Unobserved.
func CountObserved(m mat.Matrix) int {
	r, c := m.Dims()
	count := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) >= 0 {
				count++
			}
		}
	}
	return count
}

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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseModel_SetParams(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42})
	b.SetParams(Params{RandomState: int64(42)})
	assert.Equal(t, Params{RandomState: 42}, a.GetParams())
	// same seed, same stream
	assert.Equal(t, a.GetRandomGenerator().Int63(), b.GetRandomGenerator().Int63())
	// later changes of the caller's map are not seen
	params := Params{NHidden: 3}
	a.SetParams(params)
	params[NHidden] = 4
	assert.Equal(t, 3, a.GetParams().GetInt(NHidden, 0))
}

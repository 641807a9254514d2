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
	"io"

	"github.com/gorse-io/rbm/base/encoding"
	"github.com/gorse-io/rbm/model"
	"github.com/juju/errors"
)

const modelName = "rbm"

// Marshal model into byte stream.
func (rbm *RBM) Marshal(w io.Writer) error {
	if rbm.Invalid() {
		return errors.NotValidf("untrained model")
	}
	// write params
	if err := encoding.WriteGob(w, rbm.Params); err != nil {
		return errors.Trace(err)
	}
	// write weights and biases
	if err := encoding.WriteMatrix(w, rbm.W); err != nil {
		return errors.Annotate(err, "write W")
	}
	if err := encoding.WriteMatrix(w, rbm.A); err != nil {
		return errors.Annotate(err, "write a")
	}
	if err := encoding.WriteMatrix(w, rbm.B); err != nil {
		return errors.Annotate(err, "write b")
	}
	return nil
}

// Unmarshal model from byte stream.
func (rbm *RBM) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	rbm.SetParams(params)
	var err error
	if rbm.W, err = encoding.ReadMatrix(r); err != nil {
		return errors.Annotate(err, "read W")
	}
	if rbm.A, err = encoding.ReadMatrix(r); err != nil {
		return errors.Annotate(err, "read a")
	}
	if rbm.B, err = encoding.ReadMatrix(r); err != nil {
		return errors.Annotate(err, "read b")
	}
	nHidden, nVisible := rbm.W.Dims()
	if rows, cols := rbm.A.Dims(); rows != 1 || cols != nHidden {
		return errors.NotValidf("hidden bias shape (%d, %d)", rows, cols)
	}
	if rows, cols := rbm.B.Dims(); rows != 1 || cols != nVisible {
		return errors.NotValidf("visible bias shape (%d, %d)", rows, cols)
	}
	return nil
}

// MarshalModel writes a named model checkpoint.
func MarshalModel(w io.Writer, m *RBM) error {
	if err := encoding.WriteString(w, modelName); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a checkpoint written by MarshalModel.
func UnmarshalModel(r io.Reader) (*RBM, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if name != modelName {
		return nil, errors.NotSupportedf("model %s", name)
	}
	var m RBM
	if err := m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return &m, nil
}

// Copyright 2022 gorse Project Authors
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

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// WriteMatrix writes a dense matrix to byte stream: rows, columns and then
// elements in row-major order.
func WriteMatrix(w io.Writer, m *mat.Dense) error {
	r, c := m.Dims()
	if err := binary.Write(w, binary.LittleEndian, [2]int64{int64(r), int64(c)}); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < r; i++ {
		if err := binary.Write(w, binary.LittleEndian, m.RawRowView(i)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadMatrix reads a dense matrix from byte stream.
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	var dims [2]int64
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, errors.Trace(err)
	}
	if dims[0] <= 0 || dims[1] <= 0 {
		return nil, errors.NotValidf("matrix shape (%d, %d)", dims[0], dims[1])
	}
	data := make([]float64, dims[0]*dims[1])
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, errors.Trace(err)
	}
	return mat.NewDense(int(dims[0]), int(dims[1]), data), nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return err
	}
	n, err := w.Write(s)
	if err != nil {
		return err
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.NotValidf("length %d", length)
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Annotate(err, "fail to read string")
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return err
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return decoder.Decode(v)
}

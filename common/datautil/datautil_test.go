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

package datautil

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func newArchive(t *testing.T, files ...string) []byte {
	if len(files) == 0 {
		files = []string{"ml-tiny/u1.base"}
	}
	buf := bytes.NewBuffer(nil)
	w := zip.NewWriter(buf)
	for _, name := range files {
		f, err := w.Create(name)
		assert.NoError(t, err)
		_, err = f.Write([]byte("1\t1\t5\t881250949\n"))
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndUnzip(t *testing.T) {
	initialRetryInterval = time.Millisecond
	archive := newArchive(t)
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// fail the first request to exercise retry
		if requests.Inc() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	root := t.TempDir()
	dataDir, tmpDir := filepath.Join(root, "dataset"), filepath.Join(root, "temp")
	path, err := downloadAndUnzip(context.Background(), server.URL+"/ml-tiny.zip", dataDir, tmpDir, "ml-tiny")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "ml-tiny"), path)
	content, err := os.ReadFile(filepath.Join(path, "u1.base"))
	assert.NoError(t, err)
	assert.Equal(t, "1\t1\t5\t881250949\n", string(content))
	assert.Equal(t, int32(2), requests.Load())

	// cached
	_, err = downloadAndUnzip(context.Background(), server.URL+"/ml-tiny.zip", dataDir, tmpDir, "ml-tiny")
	assert.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestDownloadAndUnzip_NotFound(t *testing.T) {
	initialRetryInterval = time.Millisecond
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Inc()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	root := t.TempDir()
	_, err := downloadAndUnzip(context.Background(), server.URL+"/missing.zip",
		filepath.Join(root, "dataset"), filepath.Join(root, "temp"), "missing")
	assert.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestDownloadAndUnzip_Broken(t *testing.T) {
	initialRetryInterval = time.Millisecond
	var broken atomic.Bool
	broken.Store(true)
	// the second entry escapes the target directory, after the first one is written
	brokenArchive := newArchive(t, "ml-tiny/u1.base", "../u1.test")
	archive := newArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() && r.URL.Path == "/ml-tiny.zip" {
			_, _ = w.Write(brokenArchive)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	root := t.TempDir()
	dataDir, tmpDir := filepath.Join(root, "dataset"), filepath.Join(root, "temp")
	_, err := downloadAndUnzip(context.Background(), server.URL+"/ml-tiny.zip", dataDir, tmpDir, "ml-tiny")
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dataDir, "ml-tiny"))
	entries, err := os.ReadDir(dataDir)
	assert.NoError(t, err)
	assert.Empty(t, entries)

	// archive without the expected directory
	_, err = downloadAndUnzip(context.Background(), server.URL+"/ml-other.zip", dataDir, tmpDir, "ml-other")
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dataDir, "ml-other"))

	// the next attempt downloads again instead of using a partial cache
	broken.Store(false)
	path, err := downloadAndUnzip(context.Background(), server.URL+"/ml-tiny.zip", dataDir, tmpDir, "ml-tiny")
	assert.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(path, "u1.base"))
	assert.NoError(t, err)
	assert.Equal(t, "1\t1\t5\t881250949\n", string(content))
}

// Copyright 2024 gorse Project Authors
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
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/rbm/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// DefaultBaseURL hosts the MovieLens archives.
const DefaultBaseURL = "https://files.grouplens.org/datasets/movielens"

const maxDownloadTries = 5

var (
	tempDir    string
	datasetDir string

	initialRetryInterval = 500 * time.Millisecond
)

func init() {
	usr, err := user.Current()
	if err != nil {
		log.Logger().Fatal("failed to get user directory", zap.Error(err))
	}
	datasetDir = filepath.Join(usr.HomeDir, ".gorse", "dataset")
	tempDir = filepath.Join(usr.HomeDir, ".gorse", "temp")
}

// DatasetDir returns the directory where built-in datasets are cached.
func DatasetDir() string {
	return datasetDir
}

// DownloadAndUnzip fetches <baseURL>/<name>.zip into the dataset cache unless it
// has been extracted before, and returns the extracted directory.
func DownloadAndUnzip(ctx context.Context, baseURL, name string) (string, error) {
	return downloadAndUnzip(ctx, fmt.Sprintf("%s/%s.zip", strings.TrimSuffix(baseURL, "/"), name),
		datasetDir, tempDir, name)
}

func downloadAndUnzip(ctx context.Context, url, datasetDir, tempDir, name string) (string, error) {
	path := filepath.Join(datasetDir, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", errors.Trace(err)
	}
	zipFileName, err := backoff.Retry(ctx, func() (string, error) {
		return downloadFromUrl(ctx, url, tempDir)
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(maxDownloadTries))
	if err != nil {
		return "", errors.Annotatef(err, "download %s", url)
	}
	// Extract next to the cache and rename into place, so that only complete
	// datasets are ever found by the cache check.
	if err = os.MkdirAll(datasetDir, os.ModePerm); err != nil {
		return "", errors.Trace(err)
	}
	stagingDir, err := os.MkdirTemp(datasetDir, "."+name+"-")
	if err != nil {
		return "", errors.Trace(err)
	}
	defer os.RemoveAll(stagingDir)
	if _, err = unzip(zipFileName, stagingDir); err != nil {
		return "", errors.Annotatef(err, "unzip %s", zipFileName)
	}
	if err = os.Rename(filepath.Join(stagingDir, name), path); err != nil {
		return "", errors.Annotatef(err, "archive %s without directory %s", zipFileName, name)
	}
	return path, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialRetryInterval
	return b
}

// downloadFromUrl downloads file from URL. Client errors (4xx) are not retried.
func downloadFromUrl(ctx context.Context, src, dst string) (string, error) {
	log.Logger().Info("download dataset", zap.String("source", src), zap.String("destination", dst))
	// Extract file name
	tokens := strings.Split(src, "/")
	fileName := filepath.Join(dst, tokens[len(tokens)-1])
	// Create file
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return fileName, backoff.Permanent(err)
	}
	// Download file
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fileName, backoff.Permanent(err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		log.Logger().Warn("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %s", response.Status)
		log.Logger().Warn("failed to download", zap.Error(err), zap.String("source", src))
		if response.StatusCode >= 400 && response.StatusCode < 500 {
			return fileName, backoff.Permanent(err)
		}
		return fileName, err
	}
	output, err := os.Create(fileName)
	if err != nil {
		log.Logger().Error("failed to create file", zap.Error(err), zap.String("filename", fileName))
		return fileName, backoff.Permanent(err)
	}
	defer output.Close()
	// Save file
	if _, err = io.Copy(output, response.Body); err != nil {
		log.Logger().Warn("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, err
	}
	return fileName, nil
}

// unzip zip file.
func unzip(src, dst string) ([]string, error) {
	var fileNames []string
	// Open zip file
	r, err := zip.OpenReader(src)
	if err != nil {
		return fileNames, err
	}
	defer r.Close()
	// Extract files
	for _, f := range r.File {
		// Open file
		rc, err := f.Open()
		if err != nil {
			return fileNames, err
		}
		// Store filename/path for returning and using later on
		filePath := filepath.Join(dst, f.Name)
		// Check for ZipSlip. More Info: http://bit.ly/2MsjAWE
		if !strings.HasPrefix(filePath, filepath.Clean(dst)+string(os.PathSeparator)) {
			rc.Close()
			return fileNames, fmt.Errorf("%s: illegal file path", filePath)
		}
		// Add filename
		fileNames = append(fileNames, filePath)
		if f.FileInfo().IsDir() {
			// Create folder
			if err = os.MkdirAll(filePath, os.ModePerm); err != nil {
				rc.Close()
				return fileNames, err
			}
		} else {
			// Create all folders
			if err = os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
				rc.Close()
				return fileNames, err
			}
			// Create file
			outFile, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
			if err != nil {
				rc.Close()
				return fileNames, err
			}
			// Save file
			_, err = io.Copy(outFile, rc)
			if err != nil {
				outFile.Close()
				rc.Close()
				return nil, err
			}
			// Close the file without defer to close before next iteration of loop
			err = outFile.Close()
			if err != nil {
				rc.Close()
				return nil, err
			}
		}
		// Close file
		err = rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return fileNames, nil
}

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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/rbm/common/util"
	"github.com/gorse-io/rbm/config"
	"github.com/juju/errors"
	"golang.org/x/text/encoding/charmap"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a rating given by a user to an item. Ids start from 1.
type Rating struct {
	UserId int
	ItemId int
	Rating int
}

// ParseRatings parses lines of "user<sep>item<sep>rating[<sep>timestamp]". The
// timestamp and any further fields are ignored. Blank lines are skipped.
func ParseRatings(r io.Reader, sep string) ([]Rating, error) {
	var ratings []Rating
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, errors.NotValidf("unparseable rating row %d (%q)", lineNumber, line)
		}
		var (
			rating Rating
			err    error
		)
		if rating.UserId, err = util.ParseInt[int](fields[0]); err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("unparseable user id in rating row %d", lineNumber))
		}
		if rating.ItemId, err = util.ParseInt[int](fields[1]); err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("unparseable item id in rating row %d", lineNumber))
		}
		if rating.Rating, err = util.ParseInt[int](fields[2]); err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("unparseable rating in rating row %d", lineNumber))
		}
		if rating.UserId < 1 || rating.ItemId < 1 {
			return nil, errors.NotValidf("non-positive id in rating row %d (%q)", lineNumber, line)
		}
		if rating.Rating < MinRating || rating.Rating > MaxRating {
			return nil, errors.NotValidf("rating out of [%d, %d] in rating row %d (%q)",
				MinRating, MaxRating, lineNumber, line)
		}
		ratings = append(ratings, rating)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

// LoadRatings reads ratings from a delimited text file.
func LoadRatings(path, sep, encoding string) ([]Rating, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	ratings, err := ParseRatings(decode(file, encoding), sep)
	if err != nil {
		return nil, errors.Annotatef(err, "load ratings from %s", path)
	}
	return ratings, nil
}

// ParseCatalog returns the maximum id found in the first field of a catalog
// (items or users). Other fields are ignored.
func ParseCatalog(r io.Reader, sep string) (int, error) {
	maxId := 0
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, sep, 2)
		id, err := util.ParseInt[int](fields[0])
		if err != nil {
			return 0, errors.NewNotValid(err, fmt.Sprintf("unparseable catalog row %d", lineNumber))
		}
		maxId = max(maxId, id)
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	return maxId, nil
}

// LoadCatalog reads a catalog file and returns its maximum id.
func LoadCatalog(path, sep, encoding string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer file.Close()
	maxId, err := ParseCatalog(decode(file, encoding), sep)
	if err != nil {
		return 0, errors.Annotatef(err, "load catalog from %s", path)
	}
	return maxId, nil
}

func decode(r io.Reader, encoding string) io.Reader {
	if encoding == config.EncodingLatin1 {
		return charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	return r
}

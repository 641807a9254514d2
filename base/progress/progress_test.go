// Copyright 2023 gorse Project Authors
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

package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ProgressTestSuite struct {
	suite.Suite
	tracer *Tracer
}

func (suite *ProgressTestSuite) SetupTest() {
	suite.tracer = NewTracer("test")
}

func (suite *ProgressTestSuite) TestLeafProgress() {
	_, span := suite.tracer.Start(context.Background(), "root", 100)
	progresList := suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal("test", progresList[0].Tracer)
	suite.Equal("root", progresList[0].Name)
	suite.Equal(StatusRunning, progresList[0].Status)
	suite.Empty(progresList[0].Error)
	suite.Equal(100, progresList[0].Total)
	suite.Empty(progresList[0].Count)
	suite.False(progresList[0].StartTime.After(time.Now()))

	span.Add(10)
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusRunning, progresList[0].Status)
	suite.Equal(10, progresList[0].Count)

	span.End()
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusComplete, progresList[0].Status)
	suite.Empty(progresList[0].Error)
	suite.Equal(100, progresList[0].Total)
	suite.Equal(100, progresList[0].Count)
	suite.False(progresList[0].FinishTime.Before(progresList[0].StartTime))

	span.Fail(errors.New("some error"))
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusFailed, progresList[0].Status)
	suite.Equal("some error", progresList[0].Error)
	suite.Equal(100, progresList[0].Count)
}

func (suite *ProgressTestSuite) TestMultiLevelProgress() {
	newCtx, rootSpan := suite.tracer.Start(context.Background(), "root", 100)
	rootSpan.Add(10)
	progresList := suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(100, progresList[0].Total)
	suite.Equal(10, progresList[0].Count)

	_, childSpan := Start(newCtx, "child", 8)
	childSpan.Add(2)
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal("root", progresList[0].Name)
	suite.Equal(StatusRunning, progresList[0].Status)
	suite.Equal(800, progresList[0].Total)
	suite.Equal(82, progresList[0].Count)

	childSpan.End()
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusRunning, progresList[0].Status)
	suite.Equal(100, progresList[0].Total)
	suite.Equal(10, progresList[0].Count)

	childSpan.Fail(errors.New("some error"))
	progresList = suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusFailed, progresList[0].Status)
	suite.Equal("some error", progresList[0].Error)
	suite.Equal(100, progresList[0].Total)
	suite.Equal(10, progresList[0].Count)
}

func (suite *ProgressTestSuite) TestFailedChildDetached() {
	newCtx, rootSpan := suite.tracer.Start(context.Background(), "root", 10)
	rootSpan.Add(3)
	_, childSpan := Start(newCtx, "child", 4)
	childSpan.Add(1)
	childSpan.Fail(errors.New("canceled"))

	progresList := suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(StatusFailed, progresList[0].Status)
	suite.Equal("canceled", progresList[0].Error)
	suite.Equal(10, progresList[0].Total)
	suite.Equal(3, progresList[0].Count)
	rootSpan.children.Range(func(key, value interface{}) bool {
		suite.Failf("stale child", "%v", key)
		return true
	})

	// a sibling started after the failure refines the parent again
	_, retrySpan := Start(newCtx, "retry", 2)
	retrySpan.Add(1)
	progresList = suite.tracer.List()
	suite.Equal(20, progresList[0].Total)
	suite.Equal(7, progresList[0].Count)
}

func (suite *ProgressTestSuite) TestDetachedSpan() {
	_, span := Start(context.Background(), "detached", 3)
	span.Add(1)
	suite.Equal(1, span.Progress().Count)
	suite.Empty(suite.tracer.List())
	span.Fail(errors.New("detached"))
	suite.Equal(StatusFailed, span.Progress().Status)
	suite.Empty(suite.tracer.List())
}

func TestProgressTestSuite(t *testing.T) {
	suite.Run(t, new(ProgressTestSuite))
}

package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"inmodossier/server/internal/models"
)

type countingRunner struct {
	runs int64
	err  error
}

func (r *countingRunner) Run() (models.IngestReport, error) {
	atomic.AddInt64(&r.runs, 1)
	return models.IngestReport{Created: 1}, r.err
}

func (r *countingRunner) count() int64 {
	return atomic.LoadInt64(&r.runs)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestScheduler_StartupRun(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, newTestLogger(), time.Hour)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return runner.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_PeriodicRuns(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, newTestLogger(), 50*time.Millisecond)

	s.Start()
	defer s.Stop()

	// Startup run plus at least one ticker-driven run.
	assert.Eventually(t, func() bool {
		return runner.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StopHaltsRuns(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, newTestLogger(), 20*time.Millisecond)

	s.Start()
	assert.Eventually(t, func() bool {
		return runner.count() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	settled := runner.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, runner.count())
}

package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIntervalJobRuns(t *testing.T) {
	s := NewScheduler()
	var count int32

	err := s.AddIntervalJob("tick", 50*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	time.Sleep(220 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestAddCronJobDuplicateNameErrors(t *testing.T) {
	s := NewScheduler()

	require.NoError(t, s.AddCronJob("job", "@every 1h", func() {}))
	err := s.AddCronJob("job", "@every 1h", func() {})
	assert.Error(t, err)
}

func TestRemoveJobStopsFutureRuns(t *testing.T) {
	s := NewScheduler()
	var count int32

	require.NoError(t, s.AddIntervalJob("tick", 30*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	}))

	s.Start()
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, s.RemoveJob("tick"))
	countAtRemoval := atomic.LoadInt32(&count)

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Equal(t, countAtRemoval, atomic.LoadInt32(&count))
}

func TestJobsListsRegistered(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddIntervalJob("a", time.Second, func() {}))
	require.NoError(t, s.AddIntervalJob("b", time.Second, func() {}))

	jobs := s.Jobs()
	assert.Len(t, jobs, 2)
}

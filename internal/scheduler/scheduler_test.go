package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"laurels/pkg/logger"
)

type fakeEngine struct {
	saves  atomic.Int32
	resets atomic.Int32
	fail   atomic.Bool
}

func (e *fakeEngine) Save(ctx context.Context) error {
	e.saves.Add(1)
	if e.fail.Load() {
		return errors.New("disk full")
	}
	return nil
}

func (e *fakeEngine) ApplyResetCycles(ctx context.Context, now time.Time) []string {
	e.resets.Add(1)
	return []string{"daily_victor"}
}

func TestJobsRunPeriodically(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := &fakeEngine{}
	s, err := New(engine, Config{AutosaveInterval: 20 * time.Millisecond, ResetCheckInterval: 30 * time.Millisecond}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{JobAutosave, JobResetCycles}, s.Jobs())

	s.Start()
	assert.Eventually(t, func() bool {
		return engine.saves.Load() >= 2 && engine.resets.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

func TestDisabledJobsAreNotScheduled(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(&fakeEngine{}, Config{ResetCheckInterval: time.Hour}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{JobResetCycles}, s.Jobs())
	assert.Error(t, s.RunNow(JobAutosave))
	require.NoError(t, s.Shutdown())
}

func TestAutosaveFailureIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zap.ErrorLevel)
	engine := &fakeEngine{}
	engine.fail.Store(true)

	s, err := New(engine, Config{AutosaveInterval: time.Hour}, logger.NewWithZap("SCHEDULER", zap.New(core)))
	require.NoError(t, err)
	s.Start()
	require.NoError(t, s.RunNow(JobAutosave))

	assert.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("Autosave failed").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

func TestBackupJobNeedsFunc(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(&fakeEngine{}, Config{BackupInterval: time.Hour}, logger.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.Jobs())
	require.NoError(t, s.Shutdown())

	var backups atomic.Int32
	s, err = New(&fakeEngine{}, Config{
		AutosaveInterval: time.Hour,
		BackupInterval:   time.Hour,
		Backup: func(ctx context.Context) error {
			backups.Add(1)
			return nil
		},
	}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{JobAutosave, JobBackup}, s.Jobs())

	s.Start()
	require.NoError(t, s.RunNow(JobBackup))
	assert.Eventually(t, func() bool { return backups.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

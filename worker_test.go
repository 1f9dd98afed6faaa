package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SetupForWorker(t *testing.T) {
	svc := newTestService(t, "logging:\n  level: debug\n")

	svc.Default().Info("before worker split")
	require.NoError(t, svc.SetupForWorker("w1"))

	assert.Equal(t, "w1", svc.WorkerID())
	svc.Default().Info("running case 1")
	svc.handle(WrapanapiLoggerName).Debug("provider call")
	svc.Warnings().Warn("DeprecationWarning: old navigation")

	// The default set is cfme, py.warnings and wrapanapi; wrapanapi shares
	// the cfme sink, so its records follow into the same worker file.
	workerLog := readLog(t, svc, "w1-cfme.log")
	assert.Contains(t, workerLog, "[cfme] (w1) worker log started")
	assert.Contains(t, workerLog, "[wrapanapi] (w1) worker log started")
	assert.Contains(t, workerLog, "[cfme] (w1) running case 1")
	assert.Contains(t, workerLog, "[wrapanapi] (w1) provider call")
	assert.NoFileExists(t, filepath.Join(svc.LogDir(), "w1-wrapanapi.log"))

	warnings := readLog(t, svc, "w1-py.warnings.log")
	assert.Contains(t, warnings, "(w1) DeprecationWarning: old navigation")

	// Records from before the split stay behind in the shared file.
	original := readLog(t, svc, "cfme.log")
	assert.Contains(t, original, "before worker split")
	assert.NotContains(t, original, "running case 1")
}

func TestService_SetupForWorker_ExactlyOnce(t *testing.T) {
	svc := newTestService(t, emptyString)

	require.NoError(t, svc.SetupForWorker("w1"))
	err := svc.SetupForWorker("w2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errMsgWorkerConfigured)
	assert.Equal(t, "w1", svc.WorkerID())
}

func TestService_SetupForWorker_UnknownNameAllowsRetry(t *testing.T) {
	svc := newTestService(t, emptyString)

	err := svc.SetupForWorker("w1", DefaultLoggerName, "never_configured")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errMsgUnknownLogger)
	assert.Empty(t, svc.WorkerID())

	// The failed attempt must not burn the once.
	require.NoError(t, svc.SetupForWorker("w1", DefaultLoggerName))
	assert.Equal(t, "w1", svc.WorkerID())
}

func TestService_SetupForWorker_SelectedNamesOnly(t *testing.T) {
	svc := newTestService(t, emptyString)

	require.NoError(t, svc.SetupForWorker("w3", DefaultLoggerName))

	// Only the cfme sink moved, but the message prefix applies everywhere.
	svc.Warnings().Warn("UserWarning: left on the shared file")
	assert.NoFileExists(t, filepath.Join(svc.LogDir(), "w3-py.warnings.log"))
	assert.Contains(t, readLog(t, svc, "py.warnings.log"), "(w3) UserWarning: left on the shared file")

	svc.Default().Info("moved")
	assert.Contains(t, readLog(t, svc, "w3-cfme.log"), "(w3) moved")
}

func TestService_SetupForWorker_Validation(t *testing.T) {
	t.Run("nil service", func(t *testing.T) {
		var svc *Service
		assert.EqualError(t, svc.SetupForWorker("w1"), errMsgNilService)
	})

	t.Run("uninitialized service", func(t *testing.T) {
		svc := NewService(t.TempDir())
		assert.EqualError(t, svc.SetupForWorker("w1"), errMsgNotInitialized)
	})

	t.Run("blank worker id", func(t *testing.T) {
		svc := newTestService(t, emptyString)
		require.Error(t, svc.SetupForWorker("   "))
		// The failed call keeps the once available.
		require.NoError(t, svc.SetupForWorker("w1"))
	})
}

package logging

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStringer struct {
	calls int
}

func (c *countingStringer) String() string {
	c.calls++
	return "side effect"
}

func TestLogEvent_TypedFieldsRenderAsExtras(t *testing.T) {
	svc := newTestService(t, "logging:\n  level: trace\n")

	svc.Default().InfoWith().
		Str("vm", "rhel9-01").
		Int("cpus", 4).
		Bool("nested", true).
		Strs("tags", []string{"smoke", "provision"}).
		Dur("took", 1500*time.Millisecond).
		Msg("provisioned")

	content := readLog(t, svc, "cfme.log")
	assert.Contains(t, content, "provisioned cpus=4 nested=true")
	assert.Contains(t, content, `tags=["smoke","provision"]`)
	assert.Contains(t, content, "took=1500 vm=rhel9-01")
}

func TestLogEvent_ChainingReturnsTheSameEvent(t *testing.T) {
	svc := newTestService(t, emptyString)

	e := svc.Default().InfoWith()
	assert.Same(t, e, e.Str("k", "v"))
	assert.Same(t, e, e.Int("n", 1))
	assert.Same(t, e, e.Err(nil))
	e.Msg("chained")
}

func TestLogEvent_DisabledLevelIsInert(t *testing.T) {
	// Default level is info, so trace events are discarded before any field
	// work happens.
	svc := newTestService(t, emptyString)

	counter := &countingStringer{}
	svc.Default().TraceWith().Stringer("expensive", counter).Msg("never written")

	assert.Zero(t, counter.calls)
	assert.Equal(t, 0, svc.ActiveOperations())
	assert.NotContains(t, readLog(t, svc, "cfme.log"), "never written")
}

func TestLogEvent_MsgfSkipsFormattingWhenDisabled(t *testing.T) {
	svc := newTestService(t, emptyString)

	counter := &countingStringer{}
	svc.Default().TraceWith().Msgf("value: %v", counter)
	assert.Zero(t, counter.calls)

	svc.Default().InfoWith().Msgf("value: %v", counter)
	assert.Equal(t, 1, counter.calls)
	assert.Contains(t, readLog(t, svc, "cfme.log"), "value: side effect")
}

func TestLogEvent_DisabledPrintfNeverFormats(t *testing.T) {
	svc := newTestService(t, emptyString)
	log := svc.Default()

	counter := &countingStringer{}
	log.Tracef("session: %v", counter)
	log.Debugf("session: %v", counter)
	log.Trace(counter)
	log.Debug("state ", counter)
	assert.Zero(t, counter.calls)

	log.Infof("session: %v", counter)
	assert.Equal(t, 1, counter.calls)
}

func TestLogEvent_SourceOverride(t *testing.T) {
	t.Run("file and line", func(t *testing.T) {
		svc := newTestService(t, emptyString)

		svc.Default().InfoWith().
			SourceFile("cfme/fixtures/parallelizer.py").
			SourceLine(31).
			Msg("from elsewhere")

		assert.Contains(t, readLog(t, svc, "cfme.log"), "from elsewhere (cfme/fixtures/parallelizer.py:31)")
	})

	t.Run("file alone renders without a line number", func(t *testing.T) {
		svc := newTestService(t, emptyString)

		svc.Default().InfoWith().SourceFile("conftest").Msg("collected")

		content := readLog(t, svc, "cfme.log")
		assert.Contains(t, content, "collected (conftest)")
		assert.NotContains(t, content, "conftest:")
	})

	t.Run("override paths are kept verbatim", func(t *testing.T) {
		svc := newTestService(t, emptyString)

		// A path under the working directory would normally be relativized
		// when captured, but an explicit override must pass through as given.
		abs := filepath.Join(svc.WorkingDir, "cfme", "utils", "appliance.py")
		svc.Default().InfoWith().SourceFile(abs).SourceLine(77).Msg("reported")

		assert.Contains(t, readLog(t, svc, "cfme.log"), "reported ("+abs+":77)")
	})
}

func TestLogEvent_ErrBuildsCauseChain(t *testing.T) {
	svc := newTestService(t, emptyString)

	root := errors.New("connection refused")
	err := errors.Wrap(errors.Wrap(root, "vm power on"), "provision failed")
	svc.Default().ErrorWith().Err(err).Msg("provisioning aborted")

	content := readLog(t, svc, "cfme.log")
	assert.Contains(t, content, "provisioning aborted")
	assert.Contains(t, content, "error=provision failed: vm power on: connection refused")
	assert.Contains(t, content, "error_root=connection refused")
	assert.Contains(t, content, "error_history=provision failed: vm power on: connection refused -> vm power on: connection refused -> connection refused")
}

func TestLogEvent_ErrNilAddsNothing(t *testing.T) {
	svc := newTestService(t, emptyString)

	svc.Default().ErrorWith().Err(nil).Msg("no failure attached")

	content := readLog(t, svc, "cfme.log")
	assert.Contains(t, content, "no failure attached (")
	assert.NotContains(t, content, "error=")
	assert.NotContains(t, content, "error_root=")
}

func TestLogEvent_AnErrUsesTheGivenKey(t *testing.T) {
	svc := newTestService(t, emptyString)

	err := errors.Wrap(errors.New("disk full"), "snapshot failed")
	svc.Default().WarningWith().AnErr("cleanup", err).Msg("continuing without snapshot")

	content := readLog(t, svc, "cfme.log")
	assert.Contains(t, content, "cleanup=snapshot failed: disk full")
	assert.Contains(t, content, "cleanup_root=disk full")
	assert.Contains(t, content, "cleanup_history=snapshot failed: disk full -> disk full")
}

func TestLogEvent_SendEmitsWithoutMessage(t *testing.T) {
	svc := newTestService(t, emptyString)

	svc.Default().InfoWith().Str("checkpoint", "reached").Send()

	content := readLog(t, svc, "cfme.log")
	require.NotEmpty(t, content)
	line := strings.TrimRight(content, "\n")
	assert.Contains(t, line, "[I] [cfme]  checkpoint=reached (")
}

func TestLogEvent_EveryOperationIsAccounted(t *testing.T) {
	svc := newTestService(t, "logging:\n  level: trace\n")

	for i := 0; i < 25; i++ {
		svc.Default().TraceWith().Int("i", i).Msg("accounted")
		svc.Default().DebugWith().Send()
		svc.Default().CriticalWith().Msg("accounted")
	}
	assert.Equal(t, 0, svc.ActiveOperations())
	require.NoError(t, svc.Close())
	assert.Equal(t, 0, svc.ActiveOperations())
}

package ctrlflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/ctrlflow"
)

func Test_Unit_Events_CheckReturnsNoneWhenClear(t *testing.T) {
	t.Parallel()

	ev := ctrlflow.NewEvents()

	require.Equal(t, ctrlflow.SignalNone, ev.Check())
}

func Test_Unit_Events_InterruptOutranksAbortAndSkip(t *testing.T) {
	t.Parallel()

	ev := ctrlflow.NewEvents()
	ev.Skip.Set()
	ev.Abort.Set()
	ev.Interrupt.Set()

	require.Equal(t, ctrlflow.SignalInterrupt, ev.Check())
}

func Test_Unit_Events_AbortOutranksSkip(t *testing.T) {
	t.Parallel()

	ev := ctrlflow.NewEvents()
	ev.Skip.Set()
	ev.Abort.Set()

	require.Equal(t, ctrlflow.SignalAbort, ev.Check())
}

func Test_Unit_Events_SkipIsEdgeTriggered(t *testing.T) {
	t.Parallel()

	ev := ctrlflow.NewEvents()
	ev.Skip.Set()

	require.Equal(t, ctrlflow.SignalSkip, ev.Check())
	require.Equal(t, ctrlflow.SignalNone, ev.Check())
}

func Test_Unit_Events_SuspendBlocksUntilOpened(t *testing.T) {
	t.Parallel()

	ev := ctrlflow.NewEvents()
	ev.Suspend.Close()

	done := make(chan ctrlflow.Signal, 1)
	go func() {
		done <- ev.Check()
	}()

	select {
	case <-done:
		t.Fatal("Check returned before Suspend was opened")
	case <-time.After(20 * time.Millisecond):
	}

	ev.Suspend.Open()

	select {
	case sig := <-done:
		require.Equal(t, ctrlflow.SignalNone, sig)
	case <-time.After(time.Second):
		t.Fatal("Check did not unblock after Suspend.Open")
	}
}

func Test_Unit_SignalError_UnwrapsToSentinels(t *testing.T) {
	t.Parallel()

	require.True(t, errors.Is(ctrlflow.Skipped("Target exists"), ctrlflow.ErrSkipped))
	require.True(t, errors.Is(ctrlflow.Aborted(), ctrlflow.ErrAborted))
	require.True(t, errors.Is(ctrlflow.Interrupted(), ctrlflow.ErrInterrupted))
}

func Test_Unit_Skipped_PreservesReasonInErrorString(t *testing.T) {
	t.Parallel()

	err := ctrlflow.Skipped("Same file")

	require.Equal(t, "Same file", err.Error())
}

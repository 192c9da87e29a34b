package state

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWriteBehind_CoalescesBurst(t *testing.T) {
	var saves atomic.Int32
	w := newWriteBehind(50*time.Millisecond, func() error {
		saves.Add(1)
		return nil
	}, testLogger())
	defer w.Stop()

	// A burst of rapid mutations within the quiet period lands as a
	// single write.
	for i := 0; i < 10; i++ {
		w.Schedule()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := saves.Load(); got != 1 {
		t.Errorf("saves = %d after burst, want 1", got)
	}
}

func TestWriteBehind_SeparateBurstsWriteSeparately(t *testing.T) {
	var saves atomic.Int32
	w := newWriteBehind(20*time.Millisecond, func() error {
		saves.Add(1)
		return nil
	}, testLogger())
	defer w.Stop()

	w.Schedule()
	time.Sleep(80 * time.Millisecond)
	w.Schedule()
	time.Sleep(80 * time.Millisecond)

	if got := saves.Load(); got != 2 {
		t.Errorf("saves = %d for two separated changes, want 2", got)
	}
}

func TestWriteBehind_FlushWritesPendingImmediately(t *testing.T) {
	var saves atomic.Int32
	w := newWriteBehind(time.Hour, func() error {
		saves.Add(1)
		return nil
	}, testLogger())
	defer w.Stop()

	w.Schedule()
	w.Flush()

	if got := saves.Load(); got != 1 {
		t.Errorf("saves = %d after Flush, want 1", got)
	}

	// Nothing pending: Flush is a no-op.
	w.Flush()
	if got := saves.Load(); got != 1 {
		t.Errorf("saves = %d after second Flush, want 1", got)
	}
}

func TestWriteBehind_StopPreventsFurtherWrites(t *testing.T) {
	var saves atomic.Int32
	w := newWriteBehind(10*time.Millisecond, func() error {
		saves.Add(1)
		return nil
	}, testLogger())

	w.Schedule()
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := saves.Load(); got != 0 {
		t.Errorf("saves = %d after Stop, want 0", got)
	}

	w.Schedule()
	time.Sleep(50 * time.Millisecond)
	if got := saves.Load(); got != 0 {
		t.Errorf("saves = %d after Schedule on stopped writer, want 0", got)
	}
}

package synclog

import (
	"log/slog"
	"testing"

	"github.com/clipmetrics/syncengine/internal/model"
)

func TestLogDropsWhenFull(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(model.SyncLogEntry{JobName: "test", Status: model.LogRunning})
	}

	// The next log should be dropped (non-blocking), not panic or deadlock.
	w.Log(model.SyncLogEntry{JobName: "dropped", Status: model.LogRunning})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}

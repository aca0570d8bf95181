package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// emptySnapshot is the structural encoding of an unknown task. Starting the
// comparison baseline here means a subscriber that connects before the task is
// registered just waits instead of receiving an empty event.
var emptySnapshot = []byte("{}")

// streamProgress serves the long-lived per-task event stream. It polls the
// registry at a fixed pace, emits only snapshot deltas, and ends after a
// terminal-status event. There is no intrinsic timeout: a worker that hangs
// forever produces a stream that never closes, an accepted risk of this
// design. A client disconnect ends only this handler, never the worker.
func (h *Handler) streamProgress(c *gin.Context) {
	taskID := c.Param("task_id")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	// gin's ResponseWriter defers the status line until the first write; flush
	// so the subscriber sees the committed 200 and headers at connect.
	flusher.Flush()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	last := emptySnapshot
	for {
		// snapshot under the registry lock, everything else outside it
		snap, exists := h.registry.Snapshot(taskID)

		// The delta comparison ignores the timestamp: a write that changes
		// nothing else is not a state delta worth an event.
		key := emptySnapshot
		payload := emptySnapshot
		if exists {
			var err error
			if payload, err = json.Marshal(snap); err != nil {
				h.logger.Errorf("encode snapshot for %s: %v", taskID, err)
				return
			}
			cmp := snap
			cmp.Timestamp = time.Time{}
			if key, err = json.Marshal(cmp); err != nil {
				h.logger.Errorf("encode snapshot for %s: %v", taskID, err)
				return
			}
		}

		if !bytes.Equal(key, last) {
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
			last = key
			if exists && snap.Status.Terminal() {
				return
			}
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

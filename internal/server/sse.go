package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// handleEvents streams session snapshots. Every state change produces one
// "snapshot" event carrying the latest state; bursts of changes coalesce.
func handleEvents(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session(c)
		updates, unsubscribe := s.Subscribe()
		defer unsubscribe()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		first := s.Snapshot()
		writeSSE(c.Writer, "snapshot", first)
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(deps.Heartbeat)
		defer heartbeat.Stop()

		lastVersion := first.Version
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case _, ok := <-updates:
				if !ok {
					writeSSE(c.Writer, "closed", map[string]string{"sessionId": s.ID()})
					c.Writer.Flush()
					return
				}
				snap := s.Snapshot()
				if snap.Version == lastVersion {
					continue
				}
				lastVersion = snap.Version
				writeSSE(c.Writer, "snapshot", snap)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}

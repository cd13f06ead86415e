package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"yayd/internal/api"
	"yayd/internal/jobs"
	"yayd/internal/logging"
)

const sseKeepAlive = 15 * time.Second

// GET /api/jobs/:id/events
//
// The stream opens with the current snapshot and ends after the job's
// terminal event. Every bus event carries its sequence as the SSE id. A
// client reconnecting with Last-Event-ID gets the buffered events it missed
// instead of the snapshot; when the buffer no longer reaches back that far
// the snapshot is sent as usual. Dropped bus events are recovered by
// re-reading the job status on every keep-alive tick.
func (s *apiServer) handleEvents(c *gin.Context) {
	id := c.Param("id")
	_, events, unsubscribe, err := s.controller().Subscribe(id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	defer unsubscribe()

	// Events up to cursor are reflected in snap; later ones arrive on the
	// subscription.
	bus := s.controller().Events()
	cursor := bus.LastSeq()
	snap, err := s.controller().Status(id)
	if err != nil {
		writeLookupError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, fmt.Errorf("streaming unsupported"))
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	send := func(ev jobs.Event) bool {
		data, err := json.Marshal(api.FromEvent(ev))
		if err != nil {
			s.logger.Error("encode event", logging.Error(err))
			return false
		}
		if ev.Seq > 0 {
			_, err = fmt.Fprintf(c.Writer, "event: %s\nid: %d\ndata: %s\n\n", ev.Type, ev.Seq, data)
		} else {
			_, err = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
		}
		if err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	final := func(ev jobs.Event) bool {
		return ev.Type == jobs.EventTerminal || ev.Type == jobs.EventForgotten
	}

	if resume := lastEventID(c.Request); resume > 0 && bus.Covers(resume) {
		s.logger.Debug("resuming event stream",
			logging.String(logging.FieldJobID, id),
			logging.Int64("last_event_id", resume),
		)
		for _, ev := range bus.Since(resume) {
			if ev.Seq > cursor {
				break
			}
			if ev.Job.ID != id {
				continue
			}
			if !send(ev) || final(ev) {
				return
			}
		}
		if snap.State.IsTerminal() {
			return
		}
	} else {
		initial := jobs.EventState
		if snap.State.IsTerminal() {
			initial = jobs.EventTerminal
		}
		if !send(jobs.Event{Seq: cursor, Type: initial, Timestamp: time.Now(), Job: snap}) || snap.State.IsTerminal() {
			return
		}
	}
	lastVersion := snap.Version

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.Seq <= cursor || ev.Job.Version < lastVersion {
				continue
			}
			lastVersion = ev.Job.Version
			if !send(ev) || final(ev) {
				return
			}
		case <-ticker.C:
			current, err := s.controller().Status(id)
			if err != nil {
				return
			}
			if current.State.IsTerminal() {
				send(jobs.Event{Type: jobs.EventTerminal, Timestamp: time.Now(), Job: current})
				return
			}
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// lastEventID reads the sequence a reconnecting client last received. A
// missing or malformed header yields zero.
func lastEventID(r *http.Request) int64 {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		return 0
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-courses/internal/events"
)

const progressWriteTimeout = 10 * time.Second

// progress streams a course's pipeline events over a WebSocket. Recorded
// history is replayed first when a HistoryLister is configured, then live
// events follow until either side closes. A live event already sent during
// the replay is skipped.
func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}

	// Subscribe before replaying so nothing emitted in between is lost.
	live, unsubscribe := h.cfg.Progress.Subscribe(c.ID)
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		slog.Warn("progress socket rejected", "course_id", c.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	replayed := map[string]struct{}{}
	if h.cfg.History != nil {
		past, err := h.cfg.History.ListByCourse(ctx, c.ID)
		if err != nil {
			slog.Warn("loading progress history failed", "course_id", c.ID, "error", err)
		}
		for _, ev := range past {
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
			if ev.ID != "" {
				replayed[ev.ID] = struct{}{}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-live:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if _, dup := replayed[ev.ID]; dup {
				delete(replayed, ev.ID)
				continue
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("progress socket write failed", "course_id", c.ID, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, progressWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

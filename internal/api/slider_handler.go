package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/heimdex/trimmer/internal/logging"
	"github.com/heimdex/trimmer/internal/slider"
)

const sliderReadLimit = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

// Client frames:
//
//	{"type":"track","left":10,"width":500}
//	{"type":"pointerdown","handle":0}
//	{"type":"pointermove","client_x":260}
//	{"type":"pointerup"}
type sliderMessage struct {
	Type    string  `json:"type"`
	Handle  *int    `json:"handle,omitempty"`
	ClientX float64 `json:"client_x"`
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
}

type sliderEvent struct {
	Type         string  `json:"type"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	LeftPercent  float64 `json:"left_percent"`
	RightPercent float64 `json:"right_percent"`
	Error        string  `json:"error,omitempty"`
}

// socketTracker hands pointer frames to the listeners of the active drag.
// Frames that arrive while nothing is attached are dropped.
type socketTracker struct {
	mu   sync.Mutex
	gen  int
	move func(clientX float64)
	up   func()
}

func (t *socketTracker) Attach(move func(clientX float64), up func()) func() {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.move, t.up = move, up
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		if t.gen == gen {
			t.move, t.up = nil, nil
		}
		t.mu.Unlock()
	}
}

func (t *socketTracker) pointerMove(clientX float64) {
	t.mu.Lock()
	move := t.move
	t.mu.Unlock()
	if move != nil {
		move(clientX)
	}
}

func (t *socketTracker) pointerUp() {
	t.mu.Lock()
	up := t.up
	t.mu.Unlock()
	if up != nil {
		up()
	}
}

func (t *socketTracker) attached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move != nil
}

type sliderConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

func (c *sliderConn) send(ev sliderEvent) {
	c.writeMu.Lock()
	err := c.conn.WriteJSON(ev)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("slider write failed", "error", err)
	}
}

func (c *sliderConn) sendRange(sl *slider.Slider) {
	r := sl.Value()
	left, right := sl.HandlePercents()
	c.send(sliderEvent{Type: "range", Start: r.Start, End: r.End, LeftPercent: left, RightPercent: right})
}

func (c *sliderConn) sendError(msg string) {
	c.send(sliderEvent{Type: "error", Error: msg})
}

// sliderSocketHandler runs one slider per connection over the asset's
// session. Each emitted change updates the session trim and is echoed back
// as a range frame. Closing the socket ends any drag in progress.
func sliderSocketHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := cfg.CatalogService.Session(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("slider upgrade failed", "asset_id", id, "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(sliderReadLimit)

		logger := logging.WithAssetID(logging.WithComponent(cfg.Logger, "slider"), id)
		sc := &sliderConn{conn: conn, logger: logger}
		tracker := &socketTracker{}

		var sl *slider.Slider
		sl = sess.NewSlider(tracker, func(slider.Range) { sc.sendRange(sl) })
		defer sl.Close()

		if err := sess.SyncSlider(sl); err == nil {
			sc.sendRange(sl)
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("slider socket closed", "error", err)
				}
				return
			}

			var msg sliderMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				sc.sendError("invalid message")
				continue
			}

			switch msg.Type {
			case "track":
				if msg.Width <= 0 {
					sc.sendError("track width must be positive")
					continue
				}
				sl.SetTrack(slider.Track{Left: msg.Left, Width: msg.Width})

			case "pointerdown":
				if msg.Handle == nil || !slider.Handle(*msg.Handle).Valid() {
					sc.sendError("unknown handle")
					continue
				}
				if err := sess.SyncSlider(sl); err != nil {
					sc.sendError(err.Error())
					continue
				}
				sl.BeginDrag(slider.Handle(*msg.Handle))

			case "pointermove":
				tracker.pointerMove(msg.ClientX)

			case "pointerup":
				tracker.pointerUp()

			default:
				sc.sendError("unknown message type")
			}
		}
	}
}

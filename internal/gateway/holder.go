package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/metrics"
	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

// DefaultIdleTimeout is the sliding read deadline; a connection that stays
// silent this long is torn down.
const DefaultIdleTimeout = 6 * time.Minute

// Holder accepts inbound socket connections and runs the per-connection
// state machine: accept, register, stream, teardown. Each accepted
// connection runs on its own handler goroutine, so one slow or malformed
// client cannot block others.
type Holder struct {
	store       *ConnectionStore
	queue       transport.Queue
	log         zerolog.Logger
	idleTimeout time.Duration
	maxFrame    int64
	upgrader    websocket.Upgrader
}

// NewHolder creates a connection holder publishing to the raw intake queue.
func NewHolder(store *ConnectionStore, queue transport.Queue, log zerolog.Logger, idleTimeout time.Duration, maxFrameBytes int64) *Holder {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Holder{
		store:       store,
		queue:       queue,
		log:         log.With().Str("component", "gateway").Logger(),
		idleTimeout: idleTimeout,
		maxFrame:    maxFrameBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Frames are signed and session-checked downstream; the
			// gateway itself accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and drives the connection to completion.
// Non-upgradeable requests get a client error from the upgrader.
func (h *Holder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade rejected")
		return
	}
	if h.maxFrame > 0 {
		ws.SetReadLimit(h.maxFrame)
	}

	id := h.store.Add(ws)
	log := h.log.With().Str("connection_id", id).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("connection accepted")

	if err := h.run(r, ws, id, log); err != nil {
		if isCleanClose(err) {
			log.Info().Msg("connection closed")
			h.store.Release(id)
			return
		}
		log.Warn().Err(err).Msg("connection failed")
		h.store.Remove(id, "connection failure", websocket.CloseInternalServerErr)
		return
	}
	h.store.Release(id)
}

// run reads the registration frame and then streams application frames
// until the socket closes or the idle deadline elapses.
func (h *Holder) run(r *http.Request, ws *websocket.Conn, id string, log zerolog.Logger) error {
	raw, err := h.readFrame(ws)
	if err != nil {
		return err
	}
	if !raw.IsConnectionRequest() {
		return errors.New("first frame must be a connection request")
	}
	if err := h.publish(r, raw, id); err != nil {
		return err
	}

	for {
		raw, err := h.readFrame(ws)
		if err != nil {
			return err
		}
		if err := h.publish(r, raw, id); err != nil {
			return err
		}
	}
}

// readFrame reads and decodes exactly one frame, renewing the idle
// deadline first.
func (h *Holder) readFrame(ws *websocket.Conn) (*models.RawMessage, error) {
	if err := ws.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
		return nil, err
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	raw := &models.RawMessage{}
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, errors.New("malformed frame")
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return raw, nil
}

// publish stamps the frame with its connection identity and hands it to
// the raw intake queue. A missing message id is generated at ingress.
func (h *Holder) publish(r *http.Request, raw *models.RawMessage, id string) error {
	raw.ConnectionID = id
	if raw.MessageID == "" {
		raw.MessageID = ulid.Make().String()
	}

	metrics.FramesReceived.WithLabelValues(string(raw.Kind)).Inc()
	return h.queue.Write(r.Context(), raw, transport.WriteOptions{
		Queue:     transport.QueueRaw,
		Mandatory: true,
	})
}

// isCleanClose reports whether the read loop ended with a close handshake
// rather than a failure.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

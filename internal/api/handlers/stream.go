package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/scenario"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler replays a stored upload over a WebSocket, pushing every
// simulated day as soon as it is ready.
//
// Protocol: the server sends "ready" on connect; each "start" from the
// client runs one simulation and yields a "day" per calendar day followed
// by "summary", or a single "error".
type StreamHandler struct {
	hub       *Hub
	scenarios *Scenarios
	store     *store.Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewStreamHandler(hub *Hub, sc *Scenarios, st *store.Store, m *metrics.Metrics, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{hub: hub, scenarios: sc, store: st, metrics: m, logger: logger}
}

// Serve handles GET /api/v1/uploads/:id/stream
func (h *StreamHandler) Serve(c *gin.Context) {
	if h.store == nil {
		configError(c, errNoStore)
		return
	}
	uploadID := c.Param("id")
	upload, err := h.store.GetUpload(c.Request.Context(), uploadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			configError(c, err)
			return
		}
		internalError(c, "STORE_ERROR", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("op", "handlers.Stream"), zap.Error(err))
		return
	}
	client := newClient(conn)
	h.hub.Register(client)
	go client.writePump()

	h.send(client, models.TypeReady, models.ReadyPayload{UploadID: uploadID, Info: upload.Info})
	h.readPump(client, uploadID)
}

func (h *StreamHandler) readPump(c *Client, uploadID string) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("op", "handlers.Stream"), zap.Error(err))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			h.send(c, models.TypeError, models.ErrorPayload{Message: "invalid message: " + err.Error()})
			continue
		}
		switch env.Type {
		case models.TypeStart:
			var start models.StreamStart
			if len(env.Payload) > 0 {
				if err := json.Unmarshal(env.Payload, &start); err != nil {
					h.send(c, models.TypeError, models.ErrorPayload{Message: "invalid start payload: " + err.Error()})
					continue
				}
			}
			h.run(c, uploadID, start)
		default:
			h.send(c, models.TypeError, models.ErrorPayload{Message: "unknown message type: " + env.Type})
		}
	}
}

func (h *StreamHandler) run(c *Client, uploadID string, start models.StreamStart) {
	cfg, err := h.scenarios.Build(start.Config)
	if err != nil {
		h.send(c, models.TypeError, models.ErrorPayload{Message: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	series, err := h.scenarios.Series(ctx, models.SeriesInput{UploadID: uploadID})
	cancel()
	if err != nil {
		h.send(c, models.TypeError, models.ErrorPayload{Message: err.Error()})
		return
	}

	runner := scenario.NewRunner(h.logger)
	runner.OnDay = func(d dispatch.DailyResult) {
		h.send(c, models.TypeDay, d)
	}
	began := time.Now()
	res := runner.Run(cfg, series)
	h.metrics.ObserveRun("stream", res.OK(), time.Since(began))
	if !res.OK() {
		h.send(c, models.TypeError, models.ErrorPayload{Message: res.Reason()})
		return
	}
	out := res.Value()
	h.metrics.AddDays(out.Period.Summary.DaysSimulated)
	h.send(c, models.TypeSummary, summaryOf(out))
}

func summaryOf(out scenario.Outcome) models.SimulateResponse {
	return models.SimulateResponse{
		Dimensioning: out.Dimensioning,
		Battery:      out.Battery,
		Summary:      out.Period.Summary,
	}
}

func (h *StreamHandler) send(c *Client, msgType string, payload any) {
	msg, err := models.NewEnvelope(msgType, payload)
	if err != nil {
		h.logger.Warn("failed to encode stream message", zap.String("op", "handlers.Stream"), zap.String("type", msgType), zap.Error(err))
		return
	}
	c.Send(msg)
}

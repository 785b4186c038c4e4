package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/realtime"
	"github.com/noah-isme/exam-adp-api/internal/service"
	"github.com/noah-isme/exam-adp-api/pkg/response"
)

// RealtimeHandler upgrades exam connections onto the answer channel. The
// window gate runs before the upgrade, so a closed or submitted exam is
// rejected with a plain HTTP error rather than a websocket close.
type RealtimeHandler struct {
	hub      *realtime.Hub
	access   *service.AccessService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler constructs handler. checkOrigin guards cross-origin
// upgrades; nil allows same-origin only.
func NewRealtimeHandler(hub *realtime.Hub, access *service.AccessService, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Connect godoc
// @Summary Open the live answer channel for an exam
// @Tags Sessions
// @Param id path string true "Exam ID"
// @Success 101 "Switching Protocols"
// @Router /exams/{id}/live [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	claims := claimsFromContext(c)
	examID := c.Param("id")

	session, err := h.access.RequireOpen(c.Request.Context(), claims, examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	exam, err := h.access.Exam(c.Request.Context(), examID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own HTTP error.
		h.logger.Warn("ws_upgrade_failed", zap.String("exam_id", examID), zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, claims, session, examID)
	h.hub.Register(client, exam)
	client.Serve(c.Request.Context())
}

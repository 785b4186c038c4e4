package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/service"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
	"github.com/noah-isme/exam-adp-api/pkg/response"
)

// SessionHandler exposes exam access, answer fallback and finalization
// endpoints.
type SessionHandler struct {
	access   *service.AccessService
	sessions *service.SessionService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(access *service.AccessService, sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{access: access, sessions: sessions}
}

// Access godoc
// @Summary Evaluate exam access
// @Tags Sessions
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/access [get]
func (h *SessionHandler) Access(c *gin.Context) {
	state, err := h.access.Access(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// SubmitAnswer godoc
// @Summary Store one answer (fallback for clients without a live channel)
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param questionId path string true "Question ID"
// @Param payload body object{selected_option=string} true "Answer payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/answers/{questionId} [put]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var body struct {
		SelectedOption models.AnswerOption `json:"selected_option"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	answer, err := h.sessions.SubmitAnswer(c.Request.Context(), claimsFromContext(c), service.SubmitAnswerRequest{
		SessionID:      c.Param("id"),
		QuestionID:     c.Param("questionId"),
		SelectedOption: body.SelectedOption,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answer, nil)
}

// Finalize godoc
// @Summary Finalize a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body object{score=number} false "Teacher score override"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Finalize(c *gin.Context) {
	var body struct {
		Score *float64 `json:"score"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	session, err := h.sessions.Finalize(c.Request.Context(), claimsFromContext(c), c.Param("id"), body.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

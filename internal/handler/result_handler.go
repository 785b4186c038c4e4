package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-adp-api/internal/service"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
	"github.com/noah-isme/exam-adp-api/pkg/response"
)

// ResultHandler exposes course result endpoints.
type ResultHandler struct {
	results *service.ResultService
	reports *service.ReportService
}

// NewResultHandler constructs handler.
func NewResultHandler(results *service.ResultService, reports *service.ReportService) *ResultHandler {
	return &ResultHandler{results: results, reports: reports}
}

// ListByCourse godoc
// @Summary List course results
// @Tags Results
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/results [get]
func (h *ResultHandler) ListByCourse(c *gin.Context) {
	results, err := h.results.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// MyResults godoc
// @Summary List the caller's published results
// @Tags Results
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /results/me [get]
func (h *ResultHandler) MyResults(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student token required"))
		return
	}
	results, err := h.results.ListVisibleForStudent(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// SetVisibility godoc
// @Summary Publish or hide a result
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body object{visible=bool} true "Visibility payload"
// @Success 200 {object} response.Envelope
// @Router /results/{id}/visibility [put]
func (h *ResultHandler) SetVisibility(c *gin.Context) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Visible == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "visible flag required"))
		return
	}
	if err := h.results.SetVisibility(c.Request.Context(), claimsFromContext(c), c.Param("id"), *body.Visible); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "updated"}, nil)
}

// Export godoc
// @Summary Export course results
// @Tags Results
// @Produce octet-stream
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /courses/{id}/results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", service.FormatCSV)
	file, err := h.reports.CourseResults(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+file.FileName)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

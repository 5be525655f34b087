package ui

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"goattrib/adapters/excel"
	"goattrib/adapters/report"
	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	apperrors "goattrib/internal/errors"

	"github.com/gin-gonic/gin"
)

// fitBody accepts both "method" and the older "regularization" field
type fitBody struct {
	Method           string   `json:"method"`
	Regularization   string   `json:"regularization"`
	Alpha            *float64 `json:"alpha"`
	BootstrapSamples *int     `json:"bootstrap_samples"`
	Seed             *int64   `json:"seed"`
}

type simulateBody struct {
	Changes map[string]float64 `json:"changes"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Marketing Attribution Engine API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"create_session": "POST /api/sessions",
			"delete_session": "DELETE /api/sessions/:id",
			"upload":         "POST /api/sessions/:id/upload",
			"fit":            "POST /api/sessions/:id/fit",
			"simulate":       "POST /api/sessions/:id/simulate",
			"status":         "GET /api/sessions/:id/status",
			"metrics":        "GET /api/sessions/:id/metrics",
			"report":         "GET /api/sessions/:id/report?format=md|html",
			"history":        "GET /api/sessions/:id/history",
			"prometheus":     "GET /metrics",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.service.SessionCount()})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	id := s.service.CreateSession()
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	if err := s.service.DeleteSession(id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUpload reads a multipart CSV/XLSX file and loads it with the
// column roles given in the form fields
func (s *Server) handleUpload(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				"code":  apperrors.CodeInvalidInput,
			})
			return
		}
		s.respondError(c, apperrors.InvalidInput("multipart field \"file\" is required"))
		return
	}

	format, err := excel.DetectFormat(fileHeader.Filename)
	if err != nil {
		s.respondError(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, apperrors.Wrap(err, "failed to open upload"))
		return
	}
	defer file.Close()

	table, err := s.reader.Read(file, format)
	if err != nil {
		s.respondError(c, err)
		return
	}

	mapping := dataset.ColumnMapping{
		DateColumn:     c.PostForm("date_column"),
		TargetColumn:   c.PostForm("target_column"),
		FeatureColumns: splitList(c.PostForm("feature_columns")),
		ControlColumns: splitList(c.PostForm("control_columns")),
	}

	status, warnings, err := s.service.LoadDataset(c.Request.Context(), id, table, mapping)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      fmt.Sprintf("Data uploaded successfully. %d observations loaded.", status.ObservationCount),
		"dataset":      status,
		"columns":      table.Columns,
		"date_range":   gin.H{"start": status.DateStart, "end": status.DateEnd},
		"warnings":     warnings,
		"observations": status.ObservationCount,
	})
}

func (s *Server) handleFit(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	var body fitBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(c, apperrors.InvalidInput("invalid JSON body: "+err.Error()))
		return
	}
	method := body.Method
	if method == "" {
		method = body.Regularization
	}

	result, err := s.service.Fit(c.Request.Context(), id, model.FitRequest{
		Method:           model.Method(method),
		Alpha:            body.Alpha,
		BootstrapSamples: body.BootstrapSamples,
		Seed:             body.Seed,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSimulate(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	var body simulateBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(c, apperrors.InvalidInput("invalid JSON body: "+err.Error()))
		return
	}

	result, err := s.service.Simulate(c.Request.Context(), id, body.Changes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStatus(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	status, err := s.service.Status(c.Request.Context(), id)
	if errors.Is(err, core.ErrNoData) {
		c.JSON(http.StatusOK, gin.H{"status": dataset.StatusNoData})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleResidualMetrics(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	metrics, err := s.service.ResidualMetrics(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) handleReport(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	body, err := s.service.Report(c.Request.Context(), id, format)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), body)
}

func (s *Server) handleHistory(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(c, core.NewInvalidParameterError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.service.FitHistory(c.Request.Context(), id, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "runs": runs})
}

// sessionID parses the :id path parameter, answering 404 when malformed
func (s *Server) sessionID(c *gin.Context) (core.SessionID, bool) {
	id, err := core.ParseSessionID(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return "", false
	}
	return id, true
}

// respondError maps err onto a status code and a JSON error body
func (s *Server) respondError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)
	status := apperrors.HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal server error", "code": appErr.Code})
		return
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

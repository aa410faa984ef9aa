package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"safewheels-anpr/internal/domain/detection"
	"safewheels-anpr/internal/service"
)

// AuditStore is the read-only slice of the repository the operator API uses.
type AuditStore interface {
	FindRecords(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]detection.Record, error)
	GetByID(ctx context.Context, id int64) (*detection.Record, error)
}

type Handler struct {
	ingest *service.IngestService
	audit  AuditStore
	log    zerolog.Logger
}

func NewHandler(ingest *service.IngestService, audit AuditStore, log zerolog.Logger) *Handler {
	return &Handler{
		ingest: ingest,
		audit:  audit,
		log:    log,
	}
}

func (h *Handler) Register(r *gin.Engine, cameraAuth, operatorAuth gin.HandlerFunc) {
	// Camera-facing endpoints (Dahua ITSAPI push targets)
	camera := r.Group("/NotificationInfo")
	camera.Use(cameraAuth)
	{
		camera.POST("/TollgateInfo", h.handleNotification)
		camera.POST("/KeepAlive", h.handleHeartbeat)
	}

	// Operator audit API
	api := r.Group("/api/v1")
	api.Use(operatorAuth)
	{
		api.GET("/events", h.listEvents)
		api.GET("/events/:id", h.getEvent)
	}
}

// handleNotification accepts a TollgateInfo push. On success the camera gets
// {"Result": true}, which stops its retry cycle; any failure answers with a
// server error so the camera retries the same notification.
func (h *Handler) handleNotification(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("failed to read request body"))
		return
	}

	result, err := h.ingest.ProcessNotification(c.Request.Context(), body)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to process notification")
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	h.log.Debug().Int64("record_id", result.RecordID).Msg("notification processed")
	c.JSON(http.StatusOK, gin.H{"Result": true})
}

func (h *Handler) handleHeartbeat(c *gin.Context) {
	body, _ := c.GetRawData()

	var payload map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse("malformed heartbeat"))
			return
		}
	}

	h.log.Info().Interface("heartbeat", payload).Msg("received camera heartbeat")
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Heartbeat received",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) listEvents(c *gin.Context) {
	var plate *string
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plate = &p
	}

	from, err := parseTimeQuery(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid from time format"))
		return
	}
	to, err := parseTimeQuery(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid to time format"))
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	records, err := h.audit.FindRecords(c.Request.Context(), plate, from, to, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to find records")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(records))
}

func (h *Handler) getEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid record id"))
		return
	}

	record, err := h.audit.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("record not found"))
			return
		}
		h.log.Error().Err(err).Int64("record_id", id).Msg("failed to load record")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func parseTimeQuery(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

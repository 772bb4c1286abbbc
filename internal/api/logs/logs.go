// Package logs implements the log ingestion and query endpoints. All routes
// here sit behind the operational auth middleware; handlers read the resolved
// key identity from the request context.
package logs

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/log-center/log-center/internal/db/models"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/middleware"
	"github.com/log-center/log-center/internal/telemetry"
)

// maxRecentLimit caps /logs/recent/:limit so a client cannot request an
// unbounded result set.
const maxRecentLimit = 1000

// Handlers handles log ingestion and query endpoints
type Handlers struct {
	logRepo *repositories.LogRepository
}

// NewHandlers creates a new log Handlers instance
func NewHandlers(db *sql.DB) *Handlers {
	return &Handlers{
		logRepo: repositories.NewLogRepository(sqlx.NewDb(db, "postgres")),
	}
}

// IngestRequest represents one log record submitted for ingestion.
// ProcessName is optional for process keys (the key's bound process name
// wins) and required for user keys. Timestamp defaults to ingestion time.
type IngestRequest struct {
	Level       string     `json:"level" binding:"required"`
	Message     string     `json:"message" binding:"required"`
	ProcessName string     `json:"process_name"`
	Timestamp   *time.Time `json:"timestamp"`
	Module      *string    `json:"module"`
	Function    *string    `json:"function"`
	LineNumber  *string    `json:"line_number"`
}

// @Summary      Ingest log record
// @Description  Append one immutable log record. Process keys always record under their bound process name; user keys must name the process in the body.
// @Tags         Logs
// @Security     APIKey
// @Accept       json
// @Produce      json
// @Param        body  body  IngestRequest  true  "Log record"
// @Success      201  {object}  map[string]interface{}  "log: models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/ [post]
// IngestHandler appends a log record
// POST /logs/
func (h *Handlers) IngestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		level, err := models.ParseLogLevel(req.Level)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid log level: " + req.Level,
			})
			return
		}

		// A process key's bound process name is authoritative; a record
		// ingested with it can never masquerade as another process.
		processName := req.ProcessName
		if bound := c.GetString(middleware.KeyProcessKey); bound != "" {
			processName = bound
		}
		if processName == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "process_name is required",
			})
			return
		}

		record := &models.LogRecord{
			Level:       level,
			Message:     req.Message,
			ProcessName: processName,
			Module:      req.Module,
			Function:    req.Function,
			LineNumber:  req.LineNumber,
		}
		if req.Timestamp != nil {
			record.Timestamp = req.Timestamp.UTC()
		}

		if err := h.logRepo.Append(c.Request.Context(), record); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to store log record",
			})
			return
		}

		telemetry.LogsIngestedTotal.WithLabelValues(string(record.Level), record.ProcessName).Inc()

		c.JSON(http.StatusCreated, gin.H{
			"log": record,
		})
	}
}

// @Summary      List all logs
// @Description  Return every stored log record, oldest first.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/ [get]
// ListHandler returns all log records
// GET /logs/
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.logRepo.All(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs by level
// @Description  Return log records of one severity level. Unknown levels are a 400; a known level with no records returns an empty list.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        level  path  string  true  "Severity level (DEBUG..CRITICAL, case-insensitive)"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid level"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/level/{level} [get]
// ByLevelHandler filters logs by severity
// GET /logs/level/:level
func (h *Handlers) ByLevelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		level, err := models.ParseLogLevel(c.Param("level"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid log level: " + c.Param("level"),
			})
			return
		}

		records, err := h.logRepo.ByLevel(c.Request.Context(), level)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs by process
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        process_name  path  string  true  "Process name"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/process/{process_name} [get]
// ByProcessHandler filters logs by emitting process
// GET /logs/process/:process_name
func (h *Handlers) ByProcessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.logRepo.ByProcess(c.Request.Context(), c.Param("process_name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs by process and level
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        process_name  path  string  true  "Process name"
// @Param        level         path  string  true  "Severity level"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid level"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/process/{process_name}/level/{level} [get]
// ByProcessAndLevelHandler filters logs by process and severity
// GET /logs/process/:process_name/level/:level
func (h *Handlers) ByProcessAndLevelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		level, err := models.ParseLogLevel(c.Param("level"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid log level: " + c.Param("level"),
			})
			return
		}

		records, err := h.logRepo.ByProcessAndLevel(c.Request.Context(), c.Param("process_name"), level)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs by message keyword
// @Description  Case-sensitive substring match against the message text.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        keyword  path  string  true  "Substring to match"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/messages/{keyword} [get]
// ByKeywordHandler filters logs by message substring
// GET /logs/messages/:keyword
func (h *Handlers) ByKeywordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.logRepo.ByMessageKeyword(c.Request.Context(), c.Param("keyword"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs by process and message keyword
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        process_name  path  string  true  "Process name"
// @Param        keyword       path  string  true  "Substring to match"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/process/{process_name}/messages/{keyword} [get]
// ByProcessAndKeywordHandler filters logs by process and message substring
// GET /logs/process/:process_name/messages/:keyword
func (h *Handlers) ByProcessAndKeywordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.logRepo.ByProcessAndKeyword(c.Request.Context(), c.Param("process_name"), c.Param("keyword"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Most recent logs
// @Description  Return the n most recent records, newest first. n is capped at 1000.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        limit  path  int  true  "Number of records"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid limit"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/recent/{limit} [get]
// RecentHandler returns the newest records
// GET /logs/recent/:limit
func (h *Handlers) RecentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.Param("limit"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit: " + c.Param("limit"),
			})
			return
		}
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}

		records, err := h.logRepo.MostRecent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs from a date onward
// @Description  Return records with timestamp on or after the given date. Accepts YYYY-MM-DD or RFC3339.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        date  path  string  true  "Start date"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid date"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/date/{date} [get]
// ByDateHandler returns records from a start date onward
// GET /logs/date/:date
func (h *Handlers) ByDateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := parseDate(c.Param("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid date: " + c.Param("date"),
			})
			return
		}

		records, err := h.logRepo.ByDateFrom(c.Request.Context(), start)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// @Summary      Logs in a date range
// @Description  Return records with timestamps between start and end, inclusive on both ends. A YYYY-MM-DD end date covers that whole day.
// @Tags         Logs
// @Security     APIKey
// @Produce      json
// @Param        start  path  string  true  "Range start"
// @Param        end    path  string  true  "Range end"
// @Success      200  {object}  map[string]interface{}  "logs: []models.LogRecord"
// @Failure      400  {object}  map[string]interface{}  "Invalid date or empty range"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /logs/date-range/{start}/{end} [get]
// ByDateRangeHandler returns records within an inclusive timestamp range
// GET /logs/date-range/:start/:end
func (h *Handlers) ByDateRangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := parseDate(c.Param("start"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid date: " + c.Param("start"),
			})
			return
		}

		end, err := parseDate(c.Param("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid date: " + c.Param("end"),
			})
			return
		}
		// A bare end date means the whole of that day.
		if len(c.Param("end")) == len(time.DateOnly) {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}

		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Range end precedes start",
			})
			return
		}

		records, err := h.logRepo.ByDateRange(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to query logs",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

// parseDate accepts a bare date (YYYY-MM-DD, interpreted as midnight UTC) or a
// full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

package handler

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/ingest"
	"github.com/vivassoc/roster-backend/internal/middleware"
	"github.com/vivassoc/roster-backend/internal/reconcile"
	"github.com/vivassoc/roster-backend/internal/response"
	"github.com/vivassoc/roster-backend/internal/service"
	"github.com/vivassoc/roster-backend/internal/sheet"
	"github.com/vivassoc/roster-backend/internal/store"
)

// RosterHandler handles spreadsheet import and reconciliation endpoints.
type RosterHandler struct {
	uploads  *service.UploadService
	pipeline *ingest.Pipeline
	drainer  *reconcile.Drainer
	store    store.Store
	log      zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(
	uploads *service.UploadService,
	pipeline *ingest.Pipeline,
	drainer *reconcile.Drainer,
	st store.Store,
	log zerolog.Logger,
) *RosterHandler {
	return &RosterHandler{
		uploads:  uploads,
		pipeline: pipeline,
		drainer:  drainer,
		store:    st,
		log:      log.With().Str("component", "roster_handler").Logger(),
	}
}

// Import godoc
// POST /api/v1/roster/import
// Accepts a spreadsheet upload (multipart field "file") and runs it through
// the ingestion pipeline. Optional form fields: "sheet" selects a tab,
// "default_activity" fills rows without an activity column.
func (h *RosterHandler) Import(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	path, err := h.uploads.SaveUpload(file, header)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	// The saved copy only exists for the duration of the run.
	defer os.Remove(path)

	actor := ""
	if claims := middleware.GetClaims(c); claims != nil {
		actor = claims.Email
	}

	report, err := h.pipeline.Ingest(c.Request.Context(), ingest.Options{
		Path:            path,
		Sheet:           c.PostForm("sheet"),
		DefaultActivity: c.PostForm("default_activity"),
		Actor:           actor,
	})
	if err != nil {
		if errors.Is(err, sheet.ErrNoRows) {
			response.Fail(c, http.StatusBadRequest, response.ErrNoDataRows)
			return
		}
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Import failed")
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidPayload)
		return
	}

	// Report the original upload name, not the temp path.
	report.File = header.Filename
	response.Success(c, http.StatusOK, report)
}

// Drain godoc
// POST /api/v1/roster/drain
// Replays queued fallback entries into the primary store and reports the
// result.
func (h *RosterHandler) Drain(c *gin.Context) {
	report := h.drainer.Drain(c.Request.Context())
	response.Success(c, http.StatusOK, report)
}

// Status godoc
// GET /api/v1/roster/status
// Reports primary-store reachability, fallback queue depth and the active
// roster size.
func (h *RosterHandler) Status(c *gin.Context) {
	st := h.drainer.Status(c.Request.Context())

	activeStudents := -1
	if st.PrimaryReachable {
		if n, err := h.store.CountActiveStudents(c.Request.Context()); err == nil {
			activeStudents = n
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"primary_reachable": st.PrimaryReachable,
		"fallback_pending":  st.FallbackPending,
		"active_students":   activeStudents,
		"last_check":        st.LastCheck,
	})
}

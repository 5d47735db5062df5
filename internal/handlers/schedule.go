package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/queue"
	"github.com/benvon/schedule-builder/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// archiveDelay lets a burst of saves settle before a revision is taken
	archiveDelay = 5 * time.Second

	defaultRevisionLimit = 10
	maxRevisionLimit     = 20
)

// ScheduleHandler serves the signed-in user's schedule record
type ScheduleHandler struct {
	schedules database.ScheduleRepositoryInterface
	revisions database.RevisionRepositoryInterface
	jobs      queue.Publisher
	migrator  *migrate.Migrator
	logger    *zap.Logger
}

// NewScheduleHandler creates a new schedule handler. jobs may be nil, in which
// case no revisions are archived.
func NewScheduleHandler(
	schedules database.ScheduleRepositoryInterface,
	revisions database.RevisionRepositoryInterface,
	jobs queue.Publisher,
	migrator *migrate.Migrator,
	logger *zap.Logger,
) *ScheduleHandler {
	if migrator == nil {
		migrator = migrate.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{
		schedules: schedules,
		revisions: revisions,
		jobs:      jobs,
		migrator:  migrator,
		logger:    logger,
	}
}

// RegisterRoutes registers schedule routes on the given router
// The router should already have the /api/v1/schedule prefix
func (h *ScheduleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetSchedule).Methods("GET")
	r.HandleFunc("", h.PutSchedule).Methods("PUT")
	r.HandleFunc("", h.DeleteSchedule).Methods("DELETE")
	r.HandleFunc("/revisions", h.ListRevisions).Methods("GET")
	r.HandleFunc("/slots", h.ListTimeSlots).Methods("GET")
}

// GetSchedule returns the stored bundle. Records written by older clients are
// upgraded on the way out; the stored row is left as is.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	rec, err := h.schedules.GetByUserID(r.Context(), user.ID)
	if errors.Is(err, database.ErrScheduleNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "No schedule stored for this user")
		return
	}
	if err != nil {
		h.logger.Error("schedule_get_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load schedule")
		return
	}

	res := h.migrator.Run(rec.Data)
	if res.Repaired() {
		h.logger.Info("stored_schedule_repaired",
			zap.String("user_id", user.ID.String()),
			zap.String("from_version", res.FromVersion),
			zap.Int("repair_count", len(res.Repairs)),
		)
	}

	respondJSON(w, http.StatusOK, res.Bundle)
}

// PutSchedule replaces the stored bundle with the request body
func (h *ScheduleHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	raw, ok := readJSONObject(w, r)
	if !ok {
		return
	}

	res := h.migrator.Run(raw)
	bundle := res.Bundle
	validation.SanitizeBundle(bundle)
	if err := validation.ValidateBundle(bundle); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	// Client timestamps are kept; only missing ones are filled in
	now := time.Now().UTC()
	if bundle.UpdatedAt == nil {
		bundle.UpdatedAt = &now
	}
	if bundle.CreatedAt == nil {
		bundle.CreatedAt = &now
	}
	bundle.AppVersion = models.AppVersion

	data, err := json.Marshal(bundle)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to encode schedule")
		return
	}

	if _, err := h.schedules.Upsert(r.Context(), user.ID, data, bundle.AppVersion); err != nil {
		h.logger.Error("schedule_save_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save schedule")
		return
	}

	h.logger.Debug("schedule_saved",
		zap.String("user_id", user.ID.String()),
		zap.Int("projects", len(bundle.Projects)),
		zap.Int("bytes", len(data)),
	)
	h.enqueueArchive(r, user.ID)

	respondJSON(w, http.StatusOK, bundle)
}

// enqueueArchive schedules a revision snapshot. Failure is logged, never surfaced.
func (h *ScheduleHandler) enqueueArchive(r *http.Request, userID uuid.UUID) {
	if h.jobs == nil {
		return
	}
	job := queue.NewRevisionJob(userID, archiveDelay)
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Warn("revision_archive_enqueue_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// DeleteSchedule removes the stored bundle
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	err := h.schedules.DeleteByUserID(r.Context(), user.ID)
	if errors.Is(err, database.ErrScheduleNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "No schedule stored for this user")
		return
	}
	if err != nil {
		h.logger.Error("schedule_delete_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRevisions returns the newest archived revisions, limited by ?limit=
func (h *ScheduleHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if h.revisions == nil {
		respondJSON(w, http.StatusOK, []*models.ScheduleRevision{})
		return
	}

	limit := defaultRevisionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxRevisionLimit)
	}

	revs, err := h.revisions.ListByUserID(r.Context(), user.ID, limit)
	if err != nil {
		h.logger.Error("revision_list_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list revisions")
		return
	}
	if revs == nil {
		revs = []*models.ScheduleRevision{}
	}

	respondJSON(w, http.StatusOK, revs)
}

// ListTimeSlots returns the fixed slots of the planning day
func (h *ScheduleHandler) ListTimeSlots(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.TimeSlots())
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agendafacil/agendafacil/libs/httpx"
	"github.com/agendafacil/agendafacil/libs/outbox"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/hours"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/storage"
)

const (
	establishmentHeader = "X-Establishment-Id"

	EventHoursUpdated = "establishment.hours.updated.v1"
)

type Handler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outbox: outboxRepo, logger: logger}
}

type hoursUpdatedPayload struct {
	EstablishmentID string       `json:"establishment_id"`
	Hours           hours.Weekly `json:"hours"`
	UpdatedAt       string       `json:"updated_at"`
}

type settingsBody struct {
	EstablishmentID string `json:"establishment_id,omitempty"`
	Timezone        string `json:"timezone" validate:"required,max=64"`
}

type createServiceRequest struct {
	Name            string `json:"name" validate:"required,max=120"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=1440"`
	PriceCents      int64  `json:"price_cents" validate:"min=0"`
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	CreatedAt       string `json:"created_at"`
}

func establishmentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(establishmentHeader))
	if id == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "missing_establishment", "missing "+establishmentHeader)
		return "", false
	}
	return id, true
}

func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	weekly, err := h.repo.GetWeekly(r.Context(), estID)
	if err != nil {
		h.internal(w, r, "failed to load hours", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, weekly)
}

// UpdateHours replaces the weekly hours and emits the change through the outbox in one
// transaction, so booking-service never misses an invalidation.
func (h *Handler) UpdateHours(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	var weekly hours.Weekly
	if err := httpx.DecodeJSON(r, &weekly); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body: "+err.Error())
		return
	}
	if err := weekly.Validate(); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_hours", err.Error())
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.internal(w, r, "failed to save hours", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.ReplaceWeekly(ctx, tx, estID, weekly); err != nil {
		h.internal(w, r, "failed to save hours", err)
		return
	}
	evt, err := outbox.NewEvent("establishment", estID, EventHoursUpdated, hoursUpdatedPayload{
		EstablishmentID: estID,
		Hours:           weekly,
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.internal(w, r, "failed to save hours", err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		h.internal(w, r, "failed to save hours", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.internal(w, r, "failed to save hours", err)
		return
	}
	h.logger.InfoContext(ctx, "hours updated", "establishment_id", estID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	s, err := h.repo.GetOrCreateSettings(r.Context(), estID)
	if err != nil {
		h.internal(w, r, "failed to load settings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settingsBody{EstablishmentID: s.EstablishmentID, Timezone: s.Timezone})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	var req settingsBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body: "+err.Error())
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", httpx.ValidationMessage(err))
		return
	}
	if err := h.repo.UpdateSettings(r.Context(), estID, req.Timezone); err != nil {
		if errors.Is(err, storage.ErrInvalidTimezone) {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_timezone", err.Error())
			return
		}
		h.internal(w, r, "failed to save settings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	var req createServiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", httpx.ValidationMessage(err))
		return
	}
	s, err := h.repo.CreateService(r.Context(), estID, req.Name, req.DurationMinutes, req.PriceCents)
	if err != nil {
		h.internal(w, r, "failed to create service", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toServiceItem(s))
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	estID, ok := establishmentID(w, r)
	if !ok {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	services, err := h.repo.ListServices(r.Context(), estID, limit)
	if err != nil {
		h.internal(w, r, "failed to list services", err)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, toServiceItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": items})
}

func toServiceItem(s storage.Service) serviceItem {
	return serviceItem{
		ServiceID:       s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
	httpx.WriteError(w, r, http.StatusInternalServerError, "internal", msg)
}

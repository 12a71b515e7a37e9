package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/analytics"
	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

type Handler struct {
	service *analytics.Service
	logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterRoutes mounts the analytics endpoints. All of them are admin-only.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/analytics", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)
		r.Get("/daily", h.GetDailyBookings)
		r.Get("/top-items", h.GetTopItems)
	})
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil || !auth.IsAdminJWT(token) {
		utils.WriteError(w, http.StatusForbidden, "Admin access required", "admin role missing")
		return false
	}
	return true
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not compute summary", err.Error())
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking summary", summary)
}

func (h *Handler) GetDailyBookings(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	daily, err := h.service.GetDailyBookings(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not compute daily bookings", err.Error())
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Daily bookings", daily)
}

func (h *Handler) GetTopItems(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.GetTopItems(r.Context(), limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not compute top items", err.Error())
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Top selling items", items)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/dbsync"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	Booking *booking.Service
	DB      *db.DB
	Syncer  *dbsync.Syncer
	Logger  *logger.Logger
}

// Routes mounts the booking API. Catalog and availability are public; cart
// and reservation routes expect an authenticated email in the context.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/combos", h.ListCombos)
	r.Get("/promotions", h.ListPromotions)
	r.Get("/slots", h.ListSlots)
	r.Get("/slots/available", h.AvailableSlots)

	r.Get("/cart", h.ViewCart)
	r.Post("/cart/items", h.AddToCart)
	r.Delete("/cart/items/{lineID}", h.RemoveCartLine)
	r.Post("/cart/confirm", h.ConfirmCart)

	r.Post("/reservations", h.DirectBook)
	r.Get("/reservations", h.MyReservations)
	r.Post("/reservations/{reservationID}/checkout", h.Checkout)
	r.Post("/reservations/{reservationID}/cancel", h.Cancel)

	r.Post("/admin/slots", h.CreateSlot)
	r.Post("/admin/reservations/{reservationID}/approve", h.Approve)
	r.Post("/admin/reservations/{reservationID}/void", h.Void)
	r.Delete("/admin/reservations/{reservationID}", h.Delete)
	r.Get("/admin/sync/status", h.SyncStatus)
	r.Post("/admin/sync", h.TriggerSync)
}

// caller resolves the customer behind the request, preferring the verified
// OIDC context and falling back to the raw JWT claims when the middleware is
// off. The name travels along so first contact can provision a profile.
func (h *Handler) caller(r *http.Request) (booking.Caller, bool) {
	if email, ok := auth.EmailFromContext(r.Context()); ok {
		return booking.Caller{Email: email, Name: auth.NameFromContext(r.Context())}, true
	}
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return booking.Caller{}, false
	}
	email, err := auth.ExtractEmailFromJWT(token)
	if err != nil {
		return booking.Caller{}, false
	}
	return booking.Caller{Email: email, Name: auth.ExtractNameFromJWT(token)}, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil || !auth.IsAdminJWT(token) {
		utils.WriteError(w, http.StatusForbidden, "Admin access required", "admin role missing")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound),
		errors.Is(err, booking.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrMissingFields),
		errors.Is(err, booking.ErrEmptyCart),
		errors.Is(err, booking.ErrInvalidItemType),
		errors.Is(err, booking.ErrInvalidPayment),
		errors.Is(err, booking.ErrMissingTransactionID):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNoSlot),
		errors.Is(err, booking.ErrDateTaken),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrAlreadyApproved),
		errors.Is(err, booking.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, booking.ErrNotOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	utils.WriteError(w, statusFor(err), message, err.Error())
}

// ---------------- CATALOG ----------------

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.DB.ListServices(r.Context())
	if err != nil {
		h.fail(w, "Could not list services", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Services retrieved", services)
}

func (h *Handler) ListCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := h.DB.ListCombos(r.Context())
	if err != nil {
		h.fail(w, "Could not list combos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Combos retrieved", combos)
}

func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.DB.ListPromotions(r.Context())
	if err != nil {
		h.fail(w, "Could not list promotions", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Promotions retrieved", promos)
}

// ---------------- SLOTS ----------------

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.DB.ListSlots(r.Context())
	if err != nil {
		h.fail(w, "Could not list slots", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Slots retrieved", slots)
}

func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing date", "date query parameter is required")
		return
	}
	slots, err := h.DB.AvailableSlots(r.Context(), date)
	if err != nil {
		h.fail(w, "Could not check availability", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Available slots retrieved", slots)
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var slot models.TimeSlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if slot.Date == "" || slot.StartTime == "" || slot.EndTime == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing fields", "date, start_time and end_time are required")
		return
	}
	if slot.Capacity < 1 {
		slot.Capacity = 1
	}
	slot.Available = true

	if err := h.DB.CreateSlot(r.Context(), &slot); err != nil {
		h.fail(w, "Could not create slot", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Slot created", slot)
}

// ---------------- CART ----------------

type addToCartRequest struct {
	ItemType string `json:"item_type"`
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	line, err := h.Booking.AddToCart(r.Context(), caller, req.ItemType, req.ItemID, req.Quantity)
	if err != nil {
		h.fail(w, "Could not add item to cart", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Item added to cart", line)
}

func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	cart, err := h.Booking.ViewCart(r.Context(), caller)
	if err != nil {
		h.fail(w, "Could not load cart", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Cart retrieved", cart)
}

func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid line id", err.Error())
		return
	}

	if err := h.Booking.RemoveCartLine(r.Context(), caller, lineID); err != nil {
		h.fail(w, "Could not remove cart line", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Cart line removed", nil)
}

type confirmCartRequest struct {
	EventDate string `json:"event_date"`
	Address   string `json:"address"`
}

func (h *Handler) ConfirmCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	var req confirmCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	res, err := h.Booking.ConfirmCart(r.Context(), caller, req.EventDate, req.Address)
	if err != nil {
		h.fail(w, "Could not confirm cart", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Reservation created", res)
}

// ---------------- RESERVATIONS ----------------

type directBookRequest struct {
	EventDate string `json:"event_date"`
	Address   string `json:"address"`
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) DirectBook(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	var req directBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	res, err := h.Booking.DirectBook(r.Context(), caller, req.EventDate, req.Address, req.ItemType, req.ItemID, req.Quantity)
	if err != nil {
		h.fail(w, "Could not create reservation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Reservation created", res)
}

func (h *Handler) MyReservations(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	reservations, err := h.Booking.MyReservations(r.Context(), caller)
	if err != nil {
		h.fail(w, "Could not list reservations", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations retrieved", reservations)
}

type checkoutRequest struct {
	Method        string `json:"method"`
	ProofURL      string `json:"proof_url"`
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	reservationID, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid reservation id", err.Error())
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.Booking.Checkout(r.Context(), caller, reservationID, req.Method, req.ProofURL, req.TransactionID)
	if err != nil {
		h.fail(w, "Checkout failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment method recorded", result)
}

// Cancel lets a customer void their own reservation while it is PENDING.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required", "could not resolve caller identity")
		return
	}

	reservationID, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid reservation id", err.Error())
		return
	}

	if err := h.Booking.Cancel(r.Context(), caller, reservationID); err != nil {
		h.fail(w, "Could not cancel reservation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservation cancelled", nil)
}

// ---------------- ADMIN ----------------

type approveRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	reservationID, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid reservation id", err.Error())
		return
	}

	var req approveRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.Booking.Approve(r.Context(), reservationID, req.TransactionID); err != nil {
		h.fail(w, "Could not approve reservation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservation approved", nil)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	reservationID, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid reservation id", err.Error())
		return
	}

	if err := h.Booking.Void(r.Context(), reservationID); err != nil {
		h.fail(w, "Could not void reservation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservation voided", nil)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	reservationID, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid reservation id", err.Error())
		return
	}

	if err := h.Booking.MarkDeleted(r.Context(), reservationID); err != nil {
		h.fail(w, "Could not delete reservation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservation deleted", nil)
}

// ---------------- SYNC ----------------

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sync status", h.Syncer.LastRun())
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	h.Syncer.Trigger()
	utils.WriteSuccess(w, http.StatusAccepted, "Sync triggered", nil)
}

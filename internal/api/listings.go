package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"skyflow/internal/middleware"
	"skyflow/internal/models"
	"skyflow/internal/util"
)

func (h *Handlers) ListApartments(w http.ResponseWriter, r *http.Request) {
	q := models.ApartmentQuery{}
	q.Limit, q.Offset = parsePagination(r)
	if v := r.URL.Query().Get("min_rent"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			q.MinRent = n
		}
	}
	if v := r.URL.Query().Get("max_rent"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			q.MaxRent = n
		}
	}
	items, total, err := h.svc.ListApartments(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Apartment{}
	}
	util.WriteJSON(w, 200, map[string]any{"apartments": items, "total": total})
}

type createApartmentRequest struct {
	Block       string `json:"block"`
	FloorNo     int    `json:"floor_no"`
	ApartmentNo string `json:"apartment_no"`
	Rent        int64  `json:"rent"`
	ImageURL    string `json:"image_url"`
}

func (h *Handlers) CreateApartment(w http.ResponseWriter, r *http.Request) {
	var req createApartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if strings.TrimSpace(req.ApartmentNo) == "" || req.Rent <= 0 {
		util.WriteError(w, 400, "bad_request", "apartment_no and a positive rent are required", middleware.RequestID(r.Context()))
		return
	}
	a, err := h.svc.CreateApartment(r.Context(), models.Apartment{
		Block:       req.Block,
		FloorNo:     req.FloorNo,
		ApartmentNo: req.ApartmentNo,
		Rent:        req.Rent,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 201, a)
}

func (h *Handlers) RelistApartment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.RelistApartment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, a)
}

func (h *Handlers) DeleteApartment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteApartment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"success": true})
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	users, err := h.svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	docs := make([]map[string]any, 0, len(users))
	for _, u := range users {
		docs = append(docs, userDoc(u))
	}
	util.WriteJSON(w, 200, map[string]any{"users": docs})
}

type makePaymentRequest struct {
	Month      string `json:"month"`
	CouponCode string `json:"coupon_code"`
}

func (h *Handlers) MakePayment(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	var req makePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if strings.TrimSpace(req.Month) == "" {
		util.WriteError(w, 400, "bad_request", "month is required", middleware.RequestID(r.Context()))
		return
	}
	p, err := h.svc.RecordPayment(r.Context(), u.Email, req.Month, req.CouponCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 201, p)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.User(r.Context())
	email := strings.ToLower(chi.URLParam(r, "email"))
	if caller.Role != models.RoleAdmin && caller.Email != email {
		util.WriteError(w, 403, "forbidden", "can only read your own account", middleware.RequestID(r.Context()))
		return
	}
	u, err := h.svc.UserByEmail(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, userDoc(u))
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.User(r.Context())
	email := strings.ToLower(chi.URLParam(r, "email"))
	if caller.Role != models.RoleAdmin && caller.Email != email {
		util.WriteError(w, 403, "forbidden", "can only read your own payments", middleware.RequestID(r.Context()))
		return
	}
	limit, offset := parsePagination(r)
	items, err := h.svc.ListPayments(r.Context(), email, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Payment{}
	}
	util.WriteJSON(w, 200, map[string]any{"payments": items})
}

func (h *Handlers) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.ValidateCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, c)
}

func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCoupons(r.Context(), true)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Coupon{}
	}
	util.WriteJSON(w, 200, map[string]any{"coupons": items})
}

type createCouponRequest struct {
	Code        string `json:"code"`
	DiscountPct int    `json:"discount_pct"`
	Description string `json:"description"`
}

func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.DiscountPct <= 0 || req.DiscountPct > 100 {
		util.WriteError(w, 400, "bad_request", "code and a discount between 1 and 100 are required", middleware.RequestID(r.Context()))
		return
	}
	c, err := h.svc.CreateCoupon(r.Context(), models.Coupon{
		Code:        req.Code,
		DiscountPct: req.DiscountPct,
		Description: req.Description,
		Active:      true,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 201, c)
}

func (h *Handlers) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if err := h.svc.SetCouponActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"success": true})
}

func (h *Handlers) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCoupon(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"success": true})
}

func (h *Handlers) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	items, err := h.svc.ListAnnouncements(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Announcement{}
	}
	util.WriteJSON(w, 200, map[string]any{"announcements": items})
}

type createAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *Handlers) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req createAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		util.WriteError(w, 400, "bad_request", "title is required", middleware.RequestID(r.Context()))
		return
	}
	a, err := h.svc.CreateAnnouncement(r.Context(), models.Announcement{Title: req.Title, Body: req.Body})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 201, a)
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.AdminStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, stats)
}

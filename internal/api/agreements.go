package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"skyflow/internal/middleware"
	"skyflow/internal/models"
	"skyflow/internal/service"
	"skyflow/internal/store"
	"skyflow/internal/util"
)

type jwtRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IssueJWT upserts the account and sets the session cookie. This is the
// login endpoint: identity is established upstream, the backend only
// records the account and hands out a session.
func (h *Handlers) IssueJWT(w http.ResponseWriter, r *http.Request) {
	var req jwtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	token, user, err := h.svc.Login(r.Context(), req.Email, req.Name)
	if err != nil {
		util.WriteError(w, 400, "login_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	h.limiter.Reset("jwt:" + middleware.ClientIP(r, h.cfg.TrustProxy))
	csrfToken := randomToken()
	h.setAuthCookies(w, r, token, csrfToken)
	util.WriteJSON(w, 200, map[string]any{
		"success":    true,
		"user":       userDoc(user),
		"csrf_token": csrfToken,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w, r)
	util.WriteJSON(w, 200, map[string]any{"success": true})
}

type submitAgreementRequest struct {
	ApartmentID string `json:"apartment_id"`
}

var declineMessages = map[service.Decision]string{
	service.DecisionAdmin:         "admins cannot request rental agreements",
	service.DecisionAlreadyMember: "account already rents an apartment",
	service.DecisionExists:        "an agreement request already exists for this account",
}

// SubmitAgreement creates a pending agreement for the logged-in user.
// The agreement is always attributed to the session identity; an email
// query param, when present, may only confirm it. Declined submissions
// are reported with a 200 and the decision label, not an error status.
func (h *Handlers) SubmitAgreement(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email"))); q != "" && q != u.Email {
		util.WriteError(w, 403, "forbidden", "cannot submit an agreement for another account", middleware.RequestID(r.Context()))
		return
	}
	var req submitAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if strings.TrimSpace(req.ApartmentID) == "" {
		util.WriteError(w, 400, "bad_request", "apartment_id is required", middleware.RequestID(r.Context()))
		return
	}
	decision, ag, err := h.svc.SubmitRequest(r.Context(), u.Email, req.ApartmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteError(w, 404, "not_found", "apartment not found", middleware.RequestID(r.Context()))
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	if decision != service.DecisionCreated {
		util.WriteJSON(w, 200, map[string]any{
			"message": declineMessages[decision],
			"status":  decision,
		})
		return
	}
	util.WriteJSON(w, 201, map[string]any{
		"message":   "agreement request submitted",
		"status":    decision,
		"agreement": ag,
	})
}

func (h *Handlers) PendingAgreements(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	items, err := h.svc.PendingRequests(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Agreement{}
	}
	util.WriteJSON(w, 200, items)
}

type updateAgreementRequest struct {
	Email       string `json:"email"`
	Status      string `json:"status"`
	ApartmentID string `json:"apartmentId"`
}

func (h *Handlers) UpdateAgreement(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.User(r.Context())
	id := chi.URLParam(r, "id")
	var req updateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	next, ok := models.ParseAgreementStatus(req.Status)
	if !ok {
		util.WriteError(w, 400, "bad_request", "unknown agreement status", middleware.RequestID(r.Context()))
		return
	}
	if err := h.svc.UpdateAgreement(r.Context(), admin.Email, id, next, req.ApartmentID, req.Email); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"message": "agreement updated"})
}

func (h *Handlers) RejectAgreement(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.User(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.svc.Reject(r.Context(), admin.Email, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"success": true, "message": "agreement rejected"})
}

// RoleUpdate forcibly demotes a member back to user, rejecting the
// approved agreement first.
func (h *Handlers) RoleUpdate(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.User(r.Context())
	target, err := h.svc.UserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.ForceDowngrade(r.Context(), admin.Email, target.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, userDoc(u))
}

// UserRole is public: the client decides which surface to render before
// a session exists, so the lookup takes no cookie.
func (h *Handlers) UserRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.svc.UserRole(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"role": role})
}

func (h *Handlers) AgreementByEmail(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.User(r.Context())
	email := strings.ToLower(chi.URLParam(r, "email"))
	if caller.Role != models.RoleAdmin && caller.Email != email {
		util.WriteError(w, 403, "forbidden", "can only read your own agreement", middleware.RequestID(r.Context()))
		return
	}
	ag, err := h.svc.AgreementByEmail(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, ag)
}

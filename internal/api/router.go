package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"skyflow/internal/config"
	"skyflow/internal/middleware"
	"skyflow/internal/models"
	"skyflow/internal/rate"
	"skyflow/internal/recon"
	"skyflow/internal/service"
	"skyflow/internal/store"
	"skyflow/internal/util"
	"skyflow/internal/version"
)

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	limiter *rate.Limiter
	sweeper *recon.Sweeper
}

func NewRouter(cfg config.Config, svc *service.Service, sweeper *recon.Sweeper) http.Handler {
	h := &Handlers{
		cfg:     cfg,
		svc:     svc,
		limiter: rate.NewLimiter(),
		sweeper: sweeper,
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.HealthReady)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, version.Current())
	})

	r.With(middleware.RateLimit(h.limiter, "jwt", 20, time.Minute, cfg.TrustProxy)).Post("/jwt", h.IssueJWT)
	r.Get("/logout", h.Logout)

	r.Get("/apartments", h.ListApartments)
	r.Get("/announcements", h.ListAnnouncements)
	r.Get("/coupons", h.ListCoupons)
	r.Get("/users/role/{email}", h.UserRole)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authn(h.svc, h.cfg.SessionCookieName))

		r.Get("/users/{email}", h.GetUser)
		r.Get("/agreement/{email}", h.AgreementByEmail)
		r.Get("/payments/{email}", h.ListPayments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFFromCookie(h.cfg.CSRFCookieName))
			r.With(middleware.RateLimit(h.limiter, "agreement", 10, time.Minute, h.cfg.TrustProxy)).Post("/agreement", h.SubmitAgreement)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.MemberOnly)
			r.Get("/coupons/validate/{code}", h.ValidateCoupon)
			r.With(middleware.CSRFFromCookie(h.cfg.CSRFCookieName)).Post("/payments", h.MakePayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/agreements/request", h.PendingAgreements)
			r.Get("/users", h.ListUsers)
			r.Get("/admin/stats", h.AdminStats)

			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFFromCookie(h.cfg.CSRFCookieName))
				r.Patch("/agreements/update/{id}", h.UpdateAgreement)
				r.Patch("/agreements/reject/{id}", h.RejectAgreement)
				r.Patch("/user/role-update/{id}", h.RoleUpdate)
				r.Post("/apartments", h.CreateApartment)
				r.Patch("/apartments/relist/{id}", h.RelistApartment)
				r.Delete("/apartments/{id}", h.DeleteApartment)
				r.Post("/coupons", h.CreateCoupon)
				r.Patch("/coupons/{id}", h.SetCouponActive)
				r.Delete("/coupons/{id}", h.DeleteCoupon)
				r.Post("/announcements", h.CreateAnnouncement)
			})
		})
	})

	return r
}

func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]any{},
	}
	comps := ready["components"].(map[string]any)

	ok := true
	if err := h.svc.Ping(r.Context()); err != nil {
		ok = false
		comps["sqlite"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["sqlite"] = map[string]any{"ok": true}
	}
	if h.sweeper != nil {
		last, count := h.sweeper.Status()
		sweep := map[string]any{"ok": !last.IsZero(), "orphans": count}
		if !last.IsZero() {
			sweep["last_run"] = last.Format(time.RFC3339)
		}
		comps["recon"] = sweep
	}

	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, 200, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, 503, ready)
}

// writeServiceError maps service and store errors onto the API error
// taxonomy. Submission declinations never reach here; they are business
// outcomes returned with a 2xx.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not_found", "resource not found", rid)
	case errors.Is(err, service.ErrNoChange):
		util.WriteError(w, http.StatusConflict, "no_change", "the record is already in that state", rid)
	case errors.Is(err, service.ErrAlreadyRenting):
		util.WriteError(w, http.StatusConflict, "already_renting", "requester already holds an approved agreement", rid)
	case errors.Is(err, service.ErrInvalidTransition):
		util.WriteError(w, http.StatusConflict, "invalid_transition", "agreement status cannot move there from its current state", rid)
	case errors.Is(err, service.ErrNoActiveAgreement):
		util.WriteError(w, http.StatusConflict, "no_active_agreement", "payments require an approved agreement", rid)
	case errors.Is(err, service.ErrCouponInactive):
		util.WriteError(w, http.StatusConflict, "coupon_inactive", "coupon is not active", rid)
	case errors.Is(err, store.ErrConflict):
		util.WriteError(w, http.StatusConflict, "conflict", "the record changed underneath this request", rid)
	default:
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "unexpected error", rid)
	}
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, r *http.Request, sessionToken, csrfToken string) {
	secure := h.cfg.ResolveCookieSecure(r)
	maxAge := int(h.cfg.SessionDuration().Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter, r *http.Request) {
	secure := h.cfg.ResolveCookieSecure(r)
	expiredAt := time.Unix(1, 0).UTC()
	for _, c := range []struct {
		name     string
		httpOnly bool
	}{
		{h.cfg.SessionCookieName, true},
		{h.cfg.CSRFCookieName, false},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     "/",
			HttpOnly: c.httpOnly,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
			Expires:  expiredAt,
		})
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func userDoc(u models.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	}
}

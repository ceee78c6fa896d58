package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"skyflow/internal/auth"
	"skyflow/internal/config"
	"skyflow/internal/models"
	"skyflow/internal/notify"
	"skyflow/internal/payments"
	"skyflow/internal/store"
)

var (
	ErrAlreadyRenting    = errors.New("user already holds an approved agreement")
	ErrNoChange          = errors.New("no change")
	ErrInvalidTransition = errors.New("invalid agreement status transition")
	ErrNoActiveAgreement = errors.New("no active agreement for this account")
	ErrCouponInactive    = errors.New("coupon is not active")
)

// Decision is the business outcome of an agreement submission. Declined
// submissions are outcomes, not errors: the caller gets a 2xx with the
// decision label so the client can explain it to the user.
type Decision string

const (
	DecisionCreated       Decision = "created"
	DecisionAdmin         Decision = "admin"
	DecisionAlreadyMember Decision = "alreadyMember"
	DecisionExists        Decision = "isExist"
)

type Stats struct {
	TotalUsers         int     `json:"total_users"`
	TotalMembers       int     `json:"total_members"`
	TotalApartments    int     `json:"total_apartments"`
	AvailablePct       float64 `json:"available_pct"`
	RentedPct          float64 `json:"rented_pct"`
	PendingAgreements  int     `json:"pending_agreements"`
	ApprovedAgreements int     `json:"approved_agreements"`
}

type Service struct {
	cfg    config.Config
	st     *store.Store
	tokens *auth.Tokens
	sender notify.Sender
	ledger payments.Ledger
}

func New(cfg config.Config, st *store.Store, tokens *auth.Tokens, sender notify.Sender, ledger payments.Ledger) *Service {
	if sender == nil {
		sender = notify.LogSender{}
	}
	if ledger == nil {
		ledger = payments.NoopLedger{}
	}
	return &Service{cfg: cfg, st: st, tokens: tokens, sender: sender, ledger: ledger}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login upserts the account record and issues a session token. New
// accounts always start in the user role.
func (s *Service) Login(ctx context.Context, email, name string) (string, models.User, error) {
	email = normEmail(email)
	if email == "" {
		return "", models.User{}, errors.New("email is required")
	}
	u, err := s.st.UpsertUserOnLogin(ctx, email, strings.TrimSpace(name))
	if err != nil {
		return "", models.User{}, err
	}
	token, err := s.tokens.Issue(u.Email)
	if err != nil {
		return "", models.User{}, err
	}
	return token, u, nil
}

// ValidateSession verifies the token and re-reads the account. The role
// always comes from the store, never from the token, so a downgrade is
// visible on the very next request.
func (s *Service) ValidateSession(ctx context.Context, rawToken string) (models.User, error) {
	email, err := s.tokens.Verify(rawToken)
	if err != nil {
		return models.User{}, err
	}
	return s.st.GetUserByEmail(ctx, email)
}

// SubmitRequest runs the submission gate: admins and members are
// declined outright, an existing active agreement declines the repeat,
// and leftover rejected records are purged before the insert. A lost
// race against a concurrent submission surfaces as DecisionExists.
func (s *Service) SubmitRequest(ctx context.Context, email, apartmentID string) (Decision, models.Agreement, error) {
	email = normEmail(email)
	u, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		return "", models.Agreement{}, err
	}
	switch u.Role {
	case models.RoleAdmin:
		return DecisionAdmin, models.Agreement{}, nil
	case models.RoleMember:
		return DecisionAlreadyMember, models.Agreement{}, nil
	}
	if _, err := s.st.GetActiveAgreementByEmail(ctx, email); err == nil {
		return DecisionExists, models.Agreement{}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", models.Agreement{}, err
	}
	if _, err := s.st.DeleteRejectedAgreements(ctx, email); err != nil {
		return "", models.Agreement{}, err
	}
	apt, err := s.st.GetApartmentByID(ctx, apartmentID)
	if err != nil {
		return "", models.Agreement{}, err
	}
	ag, err := s.st.CreateAgreement(ctx, models.Agreement{
		Email:       email,
		ApartmentID: apt.ID,
		Block:       apt.Block,
		FloorNo:     apt.FloorNo,
		ApartmentNo: apt.ApartmentNo,
		Rent:        apt.Rent,
	})
	if errors.Is(err, store.ErrConflict) {
		return DecisionExists, models.Agreement{}, nil
	}
	if err != nil {
		return "", models.Agreement{}, err
	}
	return DecisionCreated, ag, nil
}

func (s *Service) PendingRequests(ctx context.Context, limit, offset int) ([]models.Agreement, error) {
	return s.st.ListAgreementsByStatus(ctx, models.AgreementPending, limit, offset)
}

func (s *Service) AgreementByEmail(ctx context.Context, email string) (models.Agreement, error) {
	return s.st.GetActiveAgreementByEmail(ctx, normEmail(email))
}

// Approve promotes the requester to member, marks the apartment rented
// and the agreement approved, all in one transaction. If the requester
// is already a member the whole thing is refused before any write.
func (s *Service) Approve(ctx context.Context, adminEmail, agreementID, apartmentID string) error {
	ag, err := s.st.GetAgreementByID(ctx, agreementID)
	if err != nil {
		return err
	}
	requester, err := s.st.GetUserByEmail(ctx, ag.Email)
	if err != nil {
		return err
	}
	if requester.Role == models.RoleMember {
		return ErrAlreadyRenting
	}
	if apartmentID == "" {
		apartmentID = ag.ApartmentID
	}
	if err := s.st.ApproveAgreement(ctx, ag.ID, apartmentID, ag.Email, normEmail(adminEmail)); err != nil {
		return err
	}
	s.notifyDecision(ctx, ag.Email, models.AgreementApproved, ag.ApartmentNo)
	return nil
}

// Reject marks the agreement rejected. Rejecting an already rejected
// agreement reports ErrNoChange rather than pretending a write happened.
func (s *Service) Reject(ctx context.Context, adminEmail, agreementID string) error {
	ag, err := s.st.GetAgreementByID(ctx, agreementID)
	if err != nil {
		return err
	}
	if err := s.st.RejectAgreement(ctx, ag.ID, normEmail(adminEmail)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrNoChange
		}
		return err
	}
	s.notifyDecision(ctx, ag.Email, models.AgreementRejected, ag.ApartmentNo)
	return nil
}

// UpdateAgreement routes an admin decision to the right path: approved
// and rejected reuse Approve/Reject, anything else must be a legal
// transition from the agreement's current status. A non-empty
// requesterEmail must match the agreement's requester; a mismatch means
// the caller is decided on a stale row and gets not-found.
func (s *Service) UpdateAgreement(ctx context.Context, adminEmail, agreementID string, next models.AgreementStatus, apartmentID, requesterEmail string) error {
	if requesterEmail != "" {
		ag, err := s.st.GetAgreementByID(ctx, agreementID)
		if err != nil {
			return err
		}
		if ag.Email != normEmail(requesterEmail) {
			return store.ErrNotFound
		}
	}
	switch next {
	case models.AgreementApproved:
		return s.Approve(ctx, adminEmail, agreementID, apartmentID)
	case models.AgreementRejected:
		return s.Reject(ctx, adminEmail, agreementID)
	}
	ag, err := s.st.GetAgreementByID(ctx, agreementID)
	if err != nil {
		return err
	}
	if !ag.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	if err := s.st.DecideAgreement(ctx, ag.ID, ag.Status, next, apartmentID, normEmail(adminEmail)); err != nil {
		return err
	}
	s.notifyDecision(ctx, ag.Email, next, ag.ApartmentNo)
	return nil
}

// ForceDowngrade demotes a member back to user. The approved agreement
// is rejected first so the partial-failure window leaves a harmless
// state (rejected agreement, still-member user) instead of a member
// with no agreement. Occupancy is deliberately left rented for the
// reconciliation sweep to report.
func (s *Service) ForceDowngrade(ctx context.Context, adminEmail, email string) (models.User, error) {
	email = normEmail(email)
	u, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if _, err := s.st.ForceRejectApprovedByEmail(ctx, email, normEmail(adminEmail)); err != nil {
		return models.User{}, err
	}
	if err := s.st.SetUserRole(ctx, email, models.RoleMember, models.RoleUser); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return u, ErrNoChange
		}
		return models.User{}, err
	}
	return s.st.GetUserByEmail(ctx, email)
}

func (s *Service) UserRole(ctx context.Context, email string) (models.Role, error) {
	u, err := s.st.GetUserByEmail(ctx, normEmail(email))
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *Service) UserByID(ctx context.Context, id string) (models.User, error) {
	return s.st.GetUserByID(ctx, id)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.st.GetUserByEmail(ctx, normEmail(email))
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.st.ListUsers(ctx, limit, offset)
}

func (s *Service) CreateApartment(ctx context.Context, a models.Apartment) (models.Apartment, error) {
	return s.st.CreateApartment(ctx, a)
}

func (s *Service) ListApartments(ctx context.Context, q models.ApartmentQuery) ([]models.Apartment, int, error) {
	return s.st.ListApartments(ctx, q)
}

func (s *Service) DeleteApartment(ctx context.Context, id string) error {
	return s.st.DeleteApartment(ctx, id)
}

// RelistApartment is the operator follow-up to a reconciliation report:
// it releases an orphaned rented apartment back to available. Relisting
// an apartment that is not rented is a conflict.
func (s *Service) RelistApartment(ctx context.Context, id string) (models.Apartment, error) {
	if _, err := s.st.GetApartmentByID(ctx, id); err != nil {
		return models.Apartment{}, err
	}
	if err := s.st.SetOccupancy(ctx, id, models.OccupancyRented, models.OccupancyAvailable); err != nil {
		return models.Apartment{}, err
	}
	return s.st.GetApartmentByID(ctx, id)
}

// RecordPayment accepts a rent payment from a member with an approved
// (or later) agreement. An active coupon reduces the amount; the ledger
// mirror is best effort and never fails the payment.
func (s *Service) RecordPayment(ctx context.Context, email, month, couponCode string) (models.Payment, error) {
	email = normEmail(email)
	ag, err := s.st.GetActiveAgreementByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Payment{}, ErrNoActiveAgreement
		}
		return models.Payment{}, err
	}
	if ag.Status == models.AgreementPending || ag.Status == models.AgreementBooked {
		return models.Payment{}, ErrNoActiveAgreement
	}
	amount := ag.Rent
	code := strings.ToUpper(strings.TrimSpace(couponCode))
	if code != "" {
		c, err := s.ValidateCoupon(ctx, code)
		if err != nil {
			return models.Payment{}, err
		}
		amount -= amount * int64(c.DiscountPct) / 100
	}
	p, err := s.st.InsertPayment(ctx, models.Payment{
		Email:       email,
		AgreementID: ag.ID,
		ApartmentNo: ag.ApartmentNo,
		Month:       month,
		Amount:      amount,
		CouponCode:  code,
	})
	if err != nil {
		return models.Payment{}, err
	}
	if err := s.ledger.Append(ctx, p); err != nil {
		log.Printf("payment ledger mirror failed payment_id=%s error=%v", p.ID, err)
	}
	return p, nil
}

func (s *Service) ListPayments(ctx context.Context, email string, limit, offset int) ([]models.Payment, error) {
	return s.st.ListPaymentsByEmail(ctx, normEmail(email), limit, offset)
}

func (s *Service) ValidateCoupon(ctx context.Context, code string) (models.Coupon, error) {
	c, err := s.st.GetCouponByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return models.Coupon{}, err
	}
	if !c.Active {
		return models.Coupon{}, ErrCouponInactive
	}
	return c, nil
}

func (s *Service) CreateCoupon(ctx context.Context, c models.Coupon) (models.Coupon, error) {
	return s.st.CreateCoupon(ctx, c)
}

func (s *Service) ListCoupons(ctx context.Context, activeOnly bool) ([]models.Coupon, error) {
	return s.st.ListCoupons(ctx, activeOnly)
}

func (s *Service) SetCouponActive(ctx context.Context, id string, active bool) error {
	return s.st.SetCouponActive(ctx, id, active)
}

func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	return s.st.DeleteCoupon(ctx, id)
}

func (s *Service) CreateAnnouncement(ctx context.Context, a models.Announcement) (models.Announcement, error) {
	return s.st.CreateAnnouncement(ctx, a)
}

func (s *Service) ListAnnouncements(ctx context.Context, limit, offset int) ([]models.Announcement, error) {
	return s.st.ListAnnouncements(ctx, limit, offset)
}

func (s *Service) AdminStats(ctx context.Context) (Stats, error) {
	var out Stats
	users, err := s.st.CountUsersByRole(ctx, models.RoleUser)
	if err != nil {
		return out, err
	}
	members, err := s.st.CountUsersByRole(ctx, models.RoleMember)
	if err != nil {
		return out, err
	}
	available, rented, err := s.st.CountApartmentsByOccupancy(ctx)
	if err != nil {
		return out, err
	}
	pending, err := s.st.CountAgreementsByStatus(ctx, models.AgreementPending)
	if err != nil {
		return out, err
	}
	approved, err := s.st.CountAgreementsByStatus(ctx, models.AgreementApproved)
	if err != nil {
		return out, err
	}
	out.TotalUsers = users + members
	out.TotalMembers = members
	out.TotalApartments = available + rented
	if out.TotalApartments > 0 {
		out.AvailablePct = float64(available) * 100 / float64(out.TotalApartments)
		out.RentedPct = float64(rented) * 100 / float64(out.TotalApartments)
	}
	out.PendingAgreements = pending
	out.ApprovedAgreements = approved
	return out, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.st.Ping(ctx)
}

func (s *Service) notifyDecision(ctx context.Context, email string, status models.AgreementStatus, apartmentNo string) {
	if err := s.sender.SendAgreementDecision(ctx, email, status, apartmentNo); err != nil {
		log.Printf("decision notice failed to=%s status=%s error=%v", email, status, err)
	}
}

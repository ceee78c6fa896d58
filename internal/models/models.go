package models

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleUser, RoleMember, RoleAdmin:
		return Role(v), true
	}
	return "", false
}

type Occupancy string

const (
	OccupancyAvailable Occupancy = "available"
	OccupancyRented    Occupancy = "rented"
)

type AgreementStatus string

const (
	AgreementPending  AgreementStatus = "pending"
	AgreementApproved AgreementStatus = "approved"
	AgreementRejected AgreementStatus = "rejected"
	AgreementBooked   AgreementStatus = "booked"
	AgreementChecked  AgreementStatus = "checked"
)

// ActiveAgreementStatuses is the status class that blocks a new request for
// the same email: everything except rejected.
var ActiveAgreementStatuses = []AgreementStatus{
	AgreementPending, AgreementApproved, AgreementBooked, AgreementChecked,
}

func (s AgreementStatus) Active() bool {
	return s == AgreementPending || s == AgreementApproved || s == AgreementBooked || s == AgreementChecked
}

func ParseAgreementStatus(v string) (AgreementStatus, bool) {
	switch AgreementStatus(v) {
	case AgreementPending, AgreementApproved, AgreementRejected, AgreementBooked, AgreementChecked:
		return AgreementStatus(v), true
	}
	return "", false
}

// agreementTransitions is the closed set of allowed status moves.
// approved -> rejected exists only for the admin downgrade path; booked and
// checked are admin-driven extension statuses.
var agreementTransitions = map[AgreementStatus][]AgreementStatus{
	AgreementPending:  {AgreementApproved, AgreementRejected, AgreementBooked},
	AgreementApproved: {AgreementRejected, AgreementChecked},
	AgreementBooked:   {AgreementChecked, AgreementRejected},
}

func (s AgreementStatus) CanTransitionTo(next AgreementStatus) bool {
	for _, allowed := range agreementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type User struct {
	ID          string
	Email       string
	Name        string
	Role        Role
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

type Apartment struct {
	ID          string    `json:"id"`
	Block       string    `json:"block"`
	FloorNo     int       `json:"floor_no"`
	ApartmentNo string    `json:"apartment_no"`
	Rent        int64     `json:"rent"`
	ImageURL    string    `json:"image_url"`
	Occupancy   Occupancy `json:"occupancy"`
	ListedAt    time.Time `json:"listed_at"`
}

type Agreement struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	ApartmentID string          `json:"apartment_id"`
	Block       string          `json:"block"`
	FloorNo     int             `json:"floor_no"`
	ApartmentNo string          `json:"apartment_no"`
	Rent        int64           `json:"rent"`
	Status      AgreementStatus `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
	DecidedBy   *string         `json:"decided_by,omitempty"`
}

type Payment struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	AgreementID string    `json:"agreement_id"`
	ApartmentNo string    `json:"apartment_no"`
	Month       string    `json:"month"`
	Amount      int64     `json:"amount"`
	CouponCode  string    `json:"coupon_code,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
}

type Coupon struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	DiscountPct int       `json:"discount_pct"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type ApartmentQuery struct {
	MinRent int64
	MaxRent int64
	Limit   int
	Offset  int
}

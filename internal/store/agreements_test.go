package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"skyflow/internal/db"
	"skyflow/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 4, 2, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return New(sqdb)
}

func seedUser(t *testing.T, st *Store, email string, role models.Role) models.User {
	t.Helper()
	u, err := st.UpsertUserOnLogin(context.Background(), email, "Test User")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if role != models.RoleUser {
		if err := st.SetUserRole(context.Background(), email, models.RoleUser, role); err != nil {
			t.Fatalf("seed role: %v", err)
		}
		u.Role = role
	}
	return u
}

func seedApartment(t *testing.T, st *Store, block string, rent int64) models.Apartment {
	t.Helper()
	a, err := st.CreateApartment(context.Background(), models.Apartment{Block: block, FloorNo: 3, ApartmentNo: block + "-301", Rent: rent})
	if err != nil {
		t.Fatalf("seed apartment: %v", err)
	}
	return a
}

func submitAgreement(t *testing.T, st *Store, email string, apt models.Apartment) models.Agreement {
	t.Helper()
	a, err := st.CreateAgreement(context.Background(), models.Agreement{
		Email:       email,
		ApartmentID: apt.ID,
		Block:       apt.Block,
		FloorNo:     apt.FloorNo,
		ApartmentNo: apt.ApartmentNo,
		Rent:        apt.Rent,
	})
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return a
}

func TestOneActiveAgreementPerEmail(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "A", 25000)
	seedUser(t, st, "u1@example.com", models.RoleUser)

	submitAgreement(t, st, "u1@example.com", apt)
	_, err := st.CreateAgreement(context.Background(), models.Agreement{Email: "u1@example.com", ApartmentID: apt.ID, Block: apt.Block, FloorNo: apt.FloorNo, ApartmentNo: apt.ApartmentNo, Rent: apt.Rent})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate active agreement, got %v", err)
	}
}

func TestConcurrentSubmitsYieldExactlyOneAgreement(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "B", 30000)
	seedUser(t, st, "race@example.com", models.RoleUser)

	const n = 8
	var wg sync.WaitGroup
	created := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.CreateAgreement(context.Background(), models.Agreement{
				Email: "race@example.com", ApartmentID: apt.ID, Block: apt.Block,
				FloorNo: apt.FloorNo, ApartmentNo: apt.ApartmentNo, Rent: apt.Rent,
			})
			if err == nil {
				created <- struct{}{}
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(created)
	if got := len(created); got != 1 {
		t.Fatalf("expected exactly 1 successful insert, got %d", got)
	}
}

func TestRejectedAgreementDoesNotBlockNewRequest(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "C", 18000)
	seedUser(t, st, "u2@example.com", models.RoleUser)

	a1 := submitAgreement(t, st, "u2@example.com", apt)
	if err := st.RejectAgreement(context.Background(), a1.ID, "admin@example.com"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	purged, err := st.DeleteRejectedAgreements(context.Background(), "u2@example.com")
	if err != nil {
		t.Fatalf("purge rejected: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged record, got %d", purged)
	}

	a2 := submitAgreement(t, st, "u2@example.com", apt)
	if _, err := st.GetAgreementByID(context.Background(), a1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old agreement to be gone, got %v", err)
	}
	got, err := st.GetActiveAgreementByEmail(context.Background(), "u2@example.com")
	if err != nil {
		t.Fatalf("load active: %v", err)
	}
	if got.ID != a2.ID || got.Status != models.AgreementPending {
		t.Fatalf("unexpected active agreement: %+v", got)
	}
}

func TestRejectAgreementRepeatIsNoChange(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "D", 22000)
	seedUser(t, st, "u3@example.com", models.RoleUser)
	a := submitAgreement(t, st, "u3@example.com", apt)

	if err := st.RejectAgreement(context.Background(), a.ID, "admin@example.com"); err != nil {
		t.Fatalf("first reject: %v", err)
	}
	if err := st.RejectAgreement(context.Background(), a.ID, "admin@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on repeat reject, got %v", err)
	}
	got, err := st.GetAgreementByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != models.AgreementRejected {
		t.Fatalf("expected rejected, got %q", got.Status)
	}
}

func TestApproveAgreementAppliesAllThreeWrites(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "E", 40000)
	seedUser(t, st, "u4@example.com", models.RoleUser)
	a := submitAgreement(t, st, "u4@example.com", apt)

	if err := st.ApproveAgreement(context.Background(), a.ID, apt.ID, "u4@example.com", "admin@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	gotApt, err := st.GetApartmentByID(context.Background(), apt.ID)
	if err != nil {
		t.Fatalf("load apartment: %v", err)
	}
	if gotApt.Occupancy != models.OccupancyRented {
		t.Fatalf("expected rented occupancy, got %q", gotApt.Occupancy)
	}
	gotUser, err := st.GetUserByEmail(context.Background(), "u4@example.com")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if gotUser.Role != models.RoleMember {
		t.Fatalf("expected member role, got %q", gotUser.Role)
	}
	gotAgr, err := st.GetAgreementByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if gotAgr.Status != models.AgreementApproved || gotAgr.ApartmentID != apt.ID {
		t.Fatalf("unexpected agreement after approve: %+v", gotAgr)
	}
}

func TestApproveAgreementRollsBackWhenApartmentTaken(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "F", 35000)
	seedUser(t, st, "first@example.com", models.RoleUser)
	seedUser(t, st, "second@example.com", models.RoleUser)
	a1 := submitAgreement(t, st, "first@example.com", apt)
	a2 := submitAgreement(t, st, "second@example.com", apt)

	if err := st.ApproveAgreement(context.Background(), a1.ID, apt.ID, "first@example.com", "admin@example.com"); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	err := st.ApproveAgreement(context.Background(), a2.ID, apt.ID, "second@example.com", "admin@example.com")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second approve, got %v", err)
	}

	// Loser's writes must all be rolled back.
	u2, err := st.GetUserByEmail(context.Background(), "second@example.com")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if u2.Role != models.RoleUser {
		t.Fatalf("expected user role preserved, got %q", u2.Role)
	}
	g2, err := st.GetAgreementByID(context.Background(), a2.ID)
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if g2.Status != models.AgreementPending {
		t.Fatalf("expected pending preserved, got %q", g2.Status)
	}
}

func TestApproveAgreementSameAgreementTwiceIsNoChange(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "G", 27000)
	seedUser(t, st, "u5@example.com", models.RoleUser)
	a := submitAgreement(t, st, "u5@example.com", apt)

	if err := st.ApproveAgreement(context.Background(), a.ID, apt.ID, "u5@example.com", "admin@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := st.ApproveAgreement(context.Background(), a.ID, apt.ID, "u5@example.com", "admin@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on repeat approve, got %v", err)
	}
}

func TestForceRejectApprovedByEmailLeavesOrphanRentedApartment(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "H", 50000)
	seedUser(t, st, "member@example.com", models.RoleUser)
	a := submitAgreement(t, st, "member@example.com", apt)
	if err := st.ApproveAgreement(context.Background(), a.ID, apt.ID, "member@example.com", "admin@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rows, err := st.ForceRejectApprovedByEmail(context.Background(), "member@example.com", "admin@example.com")
	if err != nil {
		t.Fatalf("force reject: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 forced rejection, got %d", rows)
	}

	// Occupancy is deliberately not released; the sweep must see the orphan.
	orphans, err := st.ListOrphanRentedApartments(context.Background())
	if err != nil {
		t.Fatalf("list orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != apt.ID {
		t.Fatalf("expected apartment %s flagged as orphan, got %+v", apt.ID, orphans)
	}
}

func TestDecideAgreementHonorsExpectedStatus(t *testing.T) {
	st := newTestStore(t)
	apt := seedApartment(t, st, "I", 15000)
	seedUser(t, st, "u6@example.com", models.RoleUser)
	a := submitAgreement(t, st, "u6@example.com", apt)

	if err := st.DecideAgreement(context.Background(), a.ID, models.AgreementPending, models.AgreementBooked, "", "admin@example.com"); err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := st.DecideAgreement(context.Background(), a.ID, models.AgreementPending, models.AgreementBooked, "", "admin@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale expected status, got %v", err)
	}
	got, err := st.GetAgreementByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != models.AgreementBooked {
		t.Fatalf("expected booked, got %q", got.Status)
	}
	if got.ApartmentID != apt.ID {
		t.Fatalf("empty apartment id must keep the requested one")
	}
}

package recon

import (
	"context"
	"log"
	"sync"
	"time"

	"skyflow/internal/store"
)

// Sweeper periodically looks for rented apartments with no active
// agreement pointing at them. Such orphans appear after a forced
// member downgrade, which never releases occupancy on its own. The
// sweep only reports; an operator decides whether to relist.
type Sweeper struct {
	st       *store.Store
	interval time.Duration

	mu        sync.Mutex
	lastRun   time.Time
	lastCount int
}

func NewSweeper(st *store.Store, interval time.Duration) *Sweeper {
	return &Sweeper{st: st, interval: interval}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	orphans, err := s.st.ListOrphanRentedApartments(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range orphans {
		log.Printf("recon orphan_rented apartment_id=%s block=%s apartment_no=%s", a.ID, a.Block, a.ApartmentNo)
	}
	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastCount = len(orphans)
	s.mu.Unlock()
	return len(orphans), nil
}

func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		log.Printf("recon sweep failed error=%v", err)
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("recon sweep failed error=%v", err)
			}
		}
	}
}

// Status reports the last completed sweep for the readiness endpoint.
func (s *Sweeper) Status() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastCount
}

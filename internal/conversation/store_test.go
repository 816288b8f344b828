package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/sudo-init-do/bidroom/internal/models"
)

func TestStore_DefaultsToIdle(t *testing.T) {
	s := NewStore()
	if st := s.Get(1); st.Kind != Idle {
		t.Errorf("expected idle, got %s", st)
	}
}

func TestStore_SetTakeClear(t *testing.T) {
	s := NewStore()
	s.Set(1, AwaitOffer(7))
	s.Set(2, AwaitProfile(models.RoleResponder))

	if s.Len() != 2 {
		t.Errorf("expected 2 states, got %d", s.Len())
	}
	st := s.Take(1)
	if st.Kind != AwaitingOfferText || st.RequestID != 7 {
		t.Errorf("unexpected state %s", st)
	}
	if s.Get(1).Kind != Idle {
		t.Error("Take must clear the state")
	}
	s.Clear(2)
	if s.Len() != 0 {
		t.Errorf("expected no states, got %d", s.Len())
	}
}

func TestStore_LockSerializesOneUser(t *testing.T) {
	s := NewStore()

	unlock := s.Lock(1)
	acquired := make(chan struct{})
	go func() {
		u := s.Lock(1)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock for the same user must wait")
	case <-time.After(50 * time.Millisecond):
	}

	// Other users are not blocked.
	other := s.Lock(2)
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was never handed over")
	}
}

func TestStore_LockReleasesEntries(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(1)
			unlock()
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locks) != 0 {
		t.Errorf("expected lock table to be empty, got %d", len(s.locks))
	}
}

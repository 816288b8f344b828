package conversation

import "sync"

// Store keeps one State per user in memory. It does not survive restarts.
// Lock serializes event handling for a single user while leaving other
// users free to proceed.
type Store struct {
	mu     sync.Mutex
	states map[int64]State
	locks  map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore() *Store {
	return &Store{
		states: make(map[int64]State),
		locks:  make(map[int64]*userLock),
	}
}

// Get returns the user's state, idle if none was set.
func (s *Store) Get(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

// Set overwrites the user's state. Setting idle clears it.
func (s *Store) Set(userID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Kind == Idle {
		delete(s.states, userID)
		return
	}
	s.states[userID] = st
}

func (s *Store) Clear(userID int64) {
	s.Set(userID, State{})
}

// Take returns the user's state and clears it in one step.
func (s *Store) Take(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[userID]
	delete(s.states, userID)
	return st
}

// Len reports how many users have a non-idle state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Lock blocks until no other event for userID is being handled and returns
// the matching unlock.
func (s *Store) Lock(userID int64) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

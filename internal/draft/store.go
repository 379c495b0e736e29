package draft

import (
	"sync"

	"github.com/google/uuid"

	"github.com/plateful/recipe-feed/internal/models"
)

// Store holds the current draft session per user. It is the single
// source of truth for in-progress recipes; screens mutate it only
// through Update, which applies a session operation atomically.
//
// There is no cross-restart persistence: an abandoned draft lingers
// until it is reset or overwritten by a new Begin/BeginEdit.
type Store struct {
	mu       sync.Mutex
	sessions map[int]Session
}

// NewStore creates an empty draft store
func NewStore() *Store {
	return &Store{sessions: make(map[int]Session)}
}

// Begin starts a fresh, empty draft for the add-recipe flow,
// discarding any session the user already had
func (st *Store) Begin(userID int) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := NewSession(uuid.NewString())
	st.sessions[userID] = sess
	return sess
}

// BeginEdit seeds a draft from a server recipe for the edit flow
func (st *Store) BeginEdit(userID int, r *models.Recipe) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := EditSession(uuid.NewString(), r)
	st.sessions[userID] = sess
	return sess
}

// Get returns the user's current session, creating an empty one on
// first access
func (st *Store) Get(userID int) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[userID]
	if !ok {
		sess = NewSession(uuid.NewString())
		st.sessions[userID] = sess
	}
	return sess
}

// Update applies one session operation atomically. When fn returns an
// error the stored session is left untouched.
func (st *Store) Update(userID int, fn func(Session) (Session, error)) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[userID]
	if !ok {
		sess = NewSession(uuid.NewString())
	}
	next, err := fn(sess)
	if err != nil {
		return sess, err
	}
	st.sessions[userID] = next
	return next, nil
}

// Reset restores the user's session to an empty draft and clears the
// deletion tracker; called on cancel and after successful submission
func (st *Store) Reset(userID int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[userID]; ok {
		st.sessions[userID] = sess.Reset()
	}
}

package game

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap"
)

// Registry is the process-wide table of live sessions. Its lock only guards the
// table and is never held while a session lock is taken.
type Registry struct {
	sessions map[string]*GameSession
	mu       sync.RWMutex

	catalog cards.Lookup
	opts    Options
	logger  *zap.Logger

	seedMu sync.Mutex
	seeds  *rand.Rand
}

// NewRegistry creates an empty registry. Every session it creates resolves card
// names through catalog and uses opts.
func NewRegistry(catalog cards.Lookup, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*GameSession),
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
		seeds:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Options returns the settings new sessions are created with.
func (r *Registry) Options() Options {
	return r.opts
}

// Create allocates a new empty session and returns its id.
func (r *Registry) Create() string {
	id := uuid.New().String()
	session := NewSession(id, r.catalog, r.opts, r.newRand(), r.logger)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	r.logger.Info("session created", zap.String("session_id", id))
	return id
}

// Each session owns its generator; rand.Rand is not safe for concurrent use.
func (r *Registry) newRand() *rand.Rand {
	if !r.opts.Shuffle {
		return nil
	}
	r.seedMu.Lock()
	seed := r.seeds.Int63()
	r.seedMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

// Get resolves a session. Closed sessions that have not been removed yet are
// reported as not found.
func (r *Registry) Get(id string) (*GameSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || session.Closed() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove deletes a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.logger.Info("session removed", zap.String("session_id", id))
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the registered session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Departure is the outcome of an actor leaving one session.
type Departure struct {
	SessionID string
	View      SessionView
	Closed    bool
}

// Leave removes actorID from a session and tears the session down once it is empty.
func (r *Registry) Leave(id, actorID string) (Departure, error) {
	session, err := r.Get(id)
	if err != nil {
		return Departure{}, err
	}

	var closed bool
	view, err := session.Exec(func(tx *Txn) error {
		tx.Leave(actorID)
		closed = tx.Closed()
		return nil
	})
	if err != nil {
		return Departure{}, err
	}
	if closed {
		r.Remove(id)
	}
	return Departure{SessionID: id, View: view, Closed: closed}, nil
}

// LeaveAll removes actorID from every session it is seated in, as a disconnect does.
func (r *Registry) LeaveAll(actorID string) []Departure {
	r.mu.RLock()
	candidates := make([]*GameSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		candidates = append(candidates, session)
	}
	r.mu.RUnlock()

	departures := make([]Departure, 0)
	for _, session := range candidates {
		var closed bool
		view, err := session.Exec(func(tx *Txn) error {
			if !tx.IsMember(actorID) {
				return ErrNotAMember
			}
			tx.Leave(actorID)
			closed = tx.Closed()
			return nil
		})
		if err != nil {
			continue
		}
		if closed {
			r.Remove(session.ID)
		}
		departures = append(departures, Departure{SessionID: session.ID, View: view, Closed: closed})
	}

	sort.Slice(departures, func(i, j int) bool { return departures[i].SessionID < departures[j].SessionID })
	return departures
}

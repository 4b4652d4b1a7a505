package swapengine

import (
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
)

// Sessions is a registry of caller sessions keyed by id.
type Sessions struct {
	engine *Engine

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(engine *Engine) *Sessions {
	return &Sessions{engine: engine, sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (r *Sessions) Get(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = constants.DefaultSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.engine.NewSession(id)
		s.lastUsed = r.engine.now()
		r.sessions[id] = s
	}
	return s
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many.
func (r *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := r.engine.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

package gateway

import "sync"

// Presence is the process-wide bidirectional map between authenticated
// user identity and live connection id. Single-binding policy: binding
// a user to a new connection supersedes any prior connection's reverse
// mapping. State is rebuilt from zero on restart; clients re-bind on
// connect.
type Presence struct {
	mu       sync.Mutex
	userConn map[string]string
	connUser map[string]string
}

func NewPresence() *Presence {
	return &Presence{
		userConn: make(map[string]string),
		connUser: make(map[string]string),
	}
}

// Bind is last-write-wins: a prior connection for the user loses its
// reverse mapping.
func (p *Presence) Bind(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.userConn[userID]; ok && prev != connID {
		delete(p.connUser, prev)
	}
	p.userConn[userID] = connID
	p.connUser[connID] = userID
}

// UnbindConn removes both directions of the mapping atomically. If the
// user has since re-bound to a newer connection, that newer binding is
// left intact.
func (p *Presence) UnbindConn(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.connUser[connID]
	if !ok {
		return
	}
	delete(p.connUser, connID)
	if p.userConn[userID] == connID {
		delete(p.userConn, userID)
	}
}

func (p *Presence) Lookup(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	connID, ok := p.userConn[userID]
	return connID, ok
}

func (p *Presence) UserFor(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.connUser[connID]
	return userID, ok
}

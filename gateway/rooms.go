package gateway

import "sync"

// roomTable tracks which connections occupy which rooms. Independent
// of the presence registry: a room may hold several connections, some
// anonymous, and a connection may occupy several rooms.
type roomTable struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]map[string]*Client)}
}

// join adds the client and returns the new occupancy count.
func (t *roomTable) join(room string, client *Client) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		t.rooms[room] = members
	}
	members[client.ID] = client
	return len(members)
}

// leaveAll removes the connection from every room it occupied and
// returns each vacated room's remaining occupancy. Empty rooms are
// dropped from the table.
func (t *roomTable) leaveAll(connID string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	left := make(map[string]int)
	for room, members := range t.rooms {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		left[room] = len(members)
		if len(members) == 0 {
			delete(t.rooms, room)
		}
	}
	return left
}

// members returns a snapshot of the room's occupants.
func (t *roomTable) members(room string) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clients := make([]*Client, 0, len(t.rooms[room]))
	for _, client := range t.rooms[room] {
		clients = append(clients, client)
	}
	return clients
}

func (t *roomTable) count(room string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[room])
}

package session

import "sync"

const keyPlayerID = "player_id"

// Cache is the process-local session scope. It survives for one session
// attach and holds at minimum the current player's id, written once at join
// time and read at submission time to resolve identity.
type Cache struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewCache() *Cache {
	return &Cache{values: make(map[string]string)}
}

func (c *Cache) SetPlayerID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[keyPlayerID] = id
}

func (c *Cache) PlayerID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.values[keyPlayerID]
	return id, ok && id != ""
}

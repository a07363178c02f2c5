package credential

import "sync/atomic"

// Cache is a single mutable cell holding the current token. Reads never block
// and the cell is only ever replaced whole.
type Cache struct {
	token atomic.Pointer[string]
}

// Load returns the cached token, if any.
func (c *Cache) Load() (string, bool) {
	p := c.token.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (c *Cache) store(token string) {
	c.token.Store(&token)
}

func (c *Cache) reset() {
	c.token.Store(nil)
}

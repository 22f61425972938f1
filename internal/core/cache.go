package core

import "sync"

// ParameterHandle is the reusable binding slot of one declared parameter.
// Handles live in a ParameterCache and are only written under its lock.
type ParameterHandle struct {
	def   ParameterDefinition
	index int
	last  any
	binds int
}

// Definition returns the parameter definition behind the handle.
func (h *ParameterHandle) Definition() ParameterDefinition { return h.def }

// Name returns the parameter's full name.
func (h *ParameterHandle) Name() string { return h.def.Name }

// ParameterCache maps a parameter's full name, case-insensitively, to its handle.
type ParameterCache struct {
	mu      sync.Mutex
	handles map[string]*ParameterHandle
}

func newParameterCache() *ParameterCache {
	return &ParameterCache{handles: make(map[string]*ParameterHandle)}
}

// Lookup returns the cached handle for name, if one has been created.
func (c *ParameterCache) Lookup(name string) (*ParameterHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[normalizeName(name)]
	return h, ok
}

// Len returns the number of cached handles.
func (c *ParameterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// LastValue returns the most recent value bound through the named handle and
// how many times it has been bound.
func (c *ParameterCache) LastValue(name string) (any, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[normalizeName(name)]
	if !ok {
		return nil, 0, false
	}
	return h.last, h.binds, true
}

// handle returns the handle for def, creating it on first use. The caller
// must hold c.mu.
func (c *ParameterCache) handle(def ParameterDefinition, index int) *ParameterHandle {
	key := normalizeName(def.Name)
	if h, ok := c.handles[key]; ok {
		return h
	}
	h := &ParameterHandle{def: def, index: index}
	c.handles[key] = h
	return h
}

package auth

import (
	"qittMarket/business/provisioning"
	"qittMarket/domain"
	"sync"
	"time"
)

// AppContext is the per-identity application state: who is signed in and
// where their provisioning stands. It is created on the first identity
// seen and cleared on sign-out.
type AppContext struct {
	mu       sync.RWMutex
	identity *domain.Identity
	machine  *provisioning.Machine
}

// Init binds the context to identity. A changed identity (for example one
// that has since confirmed its email) gets a fresh machine.
func (a *AppContext) Init(engine *provisioning.Engine, identity domain.Identity) *provisioning.Machine {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.machine != nil && a.identity != nil && sameIdentity(*a.identity, identity) {
		return a.machine
	}

	a.identity = &identity
	a.machine = engine.NewMachine(identity)
	return a.machine
}

func (a *AppContext) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = nil
	a.machine = nil
}

func (a *AppContext) Identity() *domain.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.identity == nil {
		return nil
	}
	identity := *a.identity
	return &identity
}

func (a *AppContext) Machine() *provisioning.Machine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.machine
}

// Snapshot is the last recorded provisioning state, UNAUTHENTICATED once
// cleared.
func (a *AppContext) Snapshot() domain.Snapshot {
	m := a.Machine()
	if m == nil {
		return domain.Snapshot{State: domain.StateUnauthenticated}
	}
	return m.Snapshot()
}

func sameIdentity(a, b domain.Identity) bool {
	return a.ID == b.ID && a.EmailVerified == b.EmailVerified
}

// DefaultIdleTTL matches the default session lifetime.
const DefaultIdleTTL = 24 * time.Hour

type contextEntry struct {
	appCtx   *AppContext
	lastSeen time.Time
}

// Contexts holds one AppContext per signed-in identity. Sessions that simply
// expire never emit SIGNED_OUT, so an entry not used for idleTTL is dropped
// as if its identity had signed out.
type Contexts struct {
	engine  *provisioning.Engine
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	byID      map[string]*contextEntry
	lastSweep time.Time
}

func NewContexts(engine *provisioning.Engine, idleTTL time.Duration) *Contexts {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	return &Contexts{
		engine:  engine,
		idleTTL: idleTTL,
		now:     time.Now,
		byID:    make(map[string]*contextEntry),
	}
}

// Get returns the initialized context of identity, creating it on first
// use. No store call happens under the registry lock.
func (c *Contexts) Get(identity domain.Identity) (*AppContext, *provisioning.Machine) {
	c.mu.Lock()
	now := c.now()
	evicted := c.sweepLocked(now)

	entry, ok := c.byID[identity.ID]
	if !ok {
		entry = &contextEntry{appCtx: &AppContext{}}
		c.byID[identity.ID] = entry
	}
	entry.lastSeen = now
	c.mu.Unlock()

	for _, appCtx := range evicted {
		appCtx.Clear()
	}

	return entry.appCtx, entry.appCtx.Init(c.engine, identity)
}

// Lookup returns the context of userID without refreshing it. An idle
// context counts as absent.
func (c *Contexts) Lookup(userID string) (*AppContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byID[userID]
	if !ok || c.now().Sub(entry.lastSeen) >= c.idleTTL {
		return nil, false
	}
	return entry.appCtx, true
}

// Clear drops the context of userID.
func (c *Contexts) Clear(userID string) {
	c.mu.Lock()
	entry, ok := c.byID[userID]
	delete(c.byID, userID)
	c.mu.Unlock()

	if ok {
		entry.appCtx.Clear()
	}
}

// Len reports how many identities currently hold a context.
func (c *Contexts) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// sweepLocked removes idle entries, at most once per sweep interval, and
// returns them so they can be cleared outside the lock.
func (c *Contexts) sweepLocked(now time.Time) []*AppContext {
	interval := c.idleTTL
	if interval > time.Minute {
		interval = time.Minute
	}
	if now.Sub(c.lastSweep) < interval {
		return nil
	}
	c.lastSweep = now

	var evicted []*AppContext
	for id, entry := range c.byID {
		if now.Sub(entry.lastSeen) >= c.idleTTL {
			delete(c.byID, id)
			evicted = append(evicted, entry.appCtx)
		}
	}
	return evicted
}

func (c *Contexts) Engine() *provisioning.Engine {
	return c.engine
}

package provisioning

import (
	"context"
	"qittMarket/domain"
	"sync"
)

// Machine is the provisioning state of one identity as seen by the
// presentation layer. It can be discarded at any time (an OAuth redirect,
// a restart) because a fresh Machine re-derives its state from the store.
//
// The mutex only guards the recorded snapshot; it is never held across a
// store call, so overlapping runs on the same Machine proceed independently
// and rely on the engine's duplicate tolerance to converge.
type Machine struct {
	engine   *Engine
	identity domain.Identity

	mu       sync.Mutex
	snapshot domain.Snapshot
	regCtx   *domain.RegistrationContext
}

// NewMachine starts a machine in AUTHENTICATED. Registration data the
// identity carries from sign-up becomes the initial profile context.
func (e *Engine) NewMachine(identity domain.Identity) *Machine {
	m := &Machine{
		engine:   e,
		identity: identity,
		snapshot: domain.Snapshot{State: domain.StateAuthenticated},
	}
	if identity.Metadata != nil {
		rc := *identity.Metadata
		m.regCtx = &rc
	}
	return m
}

func (m *Machine) Identity() domain.Identity {
	return m.identity
}

// Snapshot returns currentState, missingFields and lastError.
func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Run re-enters the machine at CHECKING_PROFILE with whatever registration
// context was last submitted.
func (m *Machine) Run(ctx context.Context) domain.Snapshot {
	m.mu.Lock()
	rc := m.regCtx
	m.mu.Unlock()

	snap := m.engine.Provision(ctx, &m.identity, rc)
	return m.record(snap)
}

// SubmitProfileContext resumes a machine halted in AWAITING_PROFILE_INPUT.
// The context is kept so that Retry can reuse it.
func (m *Machine) SubmitProfileContext(ctx context.Context, rc domain.RegistrationContext) domain.Snapshot {
	m.mu.Lock()
	m.regCtx = &rc
	m.mu.Unlock()

	return m.Run(ctx)
}

// Retry re-runs the flow after a recoverable error. The engine never
// retries on its own.
func (m *Machine) Retry(ctx context.Context) domain.Snapshot {
	return m.Run(ctx)
}

// record keeps READY terminal: a slower overlapping run that finishes after
// another run reached READY does not move the machine backwards.
func (m *Machine) record(snap domain.Snapshot) domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot.State == domain.StateReady && snap.State != domain.StateReady {
		return m.snapshot
	}

	m.snapshot = snap
	return snap
}

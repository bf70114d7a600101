package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/core/domain"
)

var ErrRoleNotPermitted = errors.New("role not permitted for the current user")

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	Principal  *domain.Principal
	ActiveRole string
}

// Authenticated reports whether a principal is signed in.
func (s Snapshot) Authenticated() bool {
	return s.Principal != nil && s.Principal.ID != ""
}

// Roles returns the principal's role set, or nil when signed out.
func (s Snapshot) Roles() []string {
	if s.Principal == nil {
		return nil
	}
	return s.Principal.Roles
}

func (s Snapshot) IsYouth() bool           { return s.ActiveRole == domain.RoleYouth }
func (s Snapshot) IsSuperOfficial() bool   { return s.ActiveRole == domain.RoleSuperOfficial }
func (s Snapshot) IsNaturalOfficial() bool { return s.ActiveRole == domain.RoleNaturalOfficial }

func (s Snapshot) equal(o Snapshot) bool {
	if s.ActiveRole != o.ActiveRole {
		return false
	}
	return principalJSON(s.Principal) == principalJSON(o.Principal)
}

// Manager owns the signed-in principal and active role. Build one per
// process and pass it to whatever needs the session.
//
// Invariants: a youth principal's active role is always "youth"; an
// official's active role is one of its roles or empty when it holds none;
// with no principal the active role is empty.
type Manager struct {
	// op serializes state changes together with their persistence so two
	// writers cannot interleave their store updates.
	op sync.Mutex

	mu         sync.RWMutex
	principal  *domain.Principal
	activeRole string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)

	durable      Store
	sessionScope Store
	log          zerolog.Logger
}

type Option func(*Manager)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager loads the persisted session. sessionScope may be nil, in which
// case a MemoryStore is used.
func NewManager(durable, sessionScope Store, opts ...Option) *Manager {
	if sessionScope == nil {
		sessionScope = NewMemoryStore()
	}
	m := &Manager{
		durable:      durable,
		sessionScope: sessionScope,
		subs:         make(map[int]func(Snapshot)),
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.load()
	return m
}

// Principal returns a copy of the signed-in principal, or nil.
func (m *Manager) Principal() *domain.Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.principal.Clone()
}

func (m *Manager) ActiveRole() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeRole
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Principal: m.principal.Clone(), ActiveRole: m.activeRole}
}

func (m *Manager) IsYouth() bool           { return m.Snapshot().IsYouth() }
func (m *Manager) IsSuperOfficial() bool   { return m.Snapshot().IsSuperOfficial() }
func (m *Manager) IsNaturalOfficial() bool { return m.Snapshot().IsNaturalOfficial() }

// SetPrincipal replaces the signed-in principal and selects its default
// active role. A nil principal signs out and clears both keys.
func (m *Manager) SetPrincipal(p *domain.Principal) error {
	m.op.Lock()
	defer m.op.Unlock()

	if p == nil {
		snap := m.swap(nil, "")
		errs := []error{
			m.sessionScope.Delete(KeyAuthUser),
			m.durable.Delete(KeyAuthUser, KeyActiveRole),
		}
		m.notify(snap)
		return errors.Join(errs...)
	}

	p = p.Clone()
	p.Normalize()
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}
	active := p.DefaultActiveRole()
	snap := m.swap(p, active)

	errs := []error{
		m.durable.Set(KeyAuthUser, string(raw)),
		m.sessionScope.Set(KeyAuthUser, string(raw)),
		m.persistActiveRole(active),
	}
	m.notify(snap)
	return errors.Join(errs...)
}

// SetActiveRole switches the active role. Roles outside the principal's set
// are rejected with ErrRoleNotPermitted.
func (m *Manager) SetActiveRole(role string) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.RLock()
	p := m.principal
	m.mu.RUnlock()

	if !p.Permits(role) {
		return fmt.Errorf("%w: %q", ErrRoleNotPermitted, role)
	}
	snap := m.swap(p, role)
	err := m.persistActiveRole(role)
	m.notify(snap)
	return err
}

// Reload re-reads both scopes, for example after the transport cleared them
// on a 401.
func (m *Manager) Reload() {
	m.op.Lock()
	defer m.op.Unlock()
	m.load()
}

// Subscribe registers fn for every state change. Call the returned func to
// unsubscribe. fn may read the manager but must not modify it.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// Watch mirrors changes another process makes to the durable scope into this
// manager until ctx is cancelled. The feed must not deliver this manager's
// own writes synchronously, as a LocalFeed wrapped around its own durable
// store would.
func (m *Manager) Watch(ctx context.Context, feed ChangeFeed) error {
	return feed.OnExternalSessionChange(ctx, m.applyExternal)
}

func (m *Manager) applyExternal(ch Change) {
	m.op.Lock()
	defer m.op.Unlock()

	switch ch.Key {
	case KeyAuthUser:
		if ch.Deleted {
			if err := m.sessionScope.Delete(KeyAuthUser); err != nil {
				m.log.Warn().Err(err).Msg("clear session scope")
			}
			if snap, changed := m.swapIfChanged(nil, ""); changed {
				m.notify(snap)
			}
			return
		}

		p, err := decodePrincipal(ch.Value)
		if err != nil {
			m.log.Warn().Err(err).Msg("ignoring malformed external principal")
			return
		}
		if err := m.sessionScope.Set(KeyAuthUser, ch.Value); err != nil {
			m.log.Warn().Err(err).Msg("mirror principal into session scope")
		}

		m.mu.RLock()
		active := m.activeRole
		m.mu.RUnlock()
		if !p.Permits(active) {
			active = p.DefaultActiveRole()
		}
		if snap, changed := m.swapIfChanged(p, active); changed {
			m.notify(snap)
		}

	case KeyActiveRole:
		m.mu.RLock()
		p := m.principal
		m.mu.RUnlock()

		active := p.DefaultActiveRole()
		if !ch.Deleted && p.Permits(ch.Value) {
			active = ch.Value
		}
		if snap, changed := m.swapIfChanged(p, active); changed {
			m.notify(snap)
		}
	}
}

// load restores state from the stores: the session scope wins over the
// durable one, malformed entries are removed, and a persisted active role
// survives only if the principal permits it.
func (m *Manager) load() {
	p := m.loadPrincipal(m.sessionScope, "session")
	if p == nil {
		p = m.loadPrincipal(m.durable, "durable")
	}

	if p == nil {
		if err := m.durable.Delete(KeyActiveRole); err != nil {
			m.log.Warn().Err(err).Msg("clear stale active role")
		}
		if snap, changed := m.swapIfChanged(nil, ""); changed {
			m.notify(snap)
		}
		return
	}

	active := p.DefaultActiveRole()
	if stored, ok, err := m.durable.Get(KeyActiveRole); err != nil {
		m.log.Warn().Err(err).Msg("read active role")
	} else if ok && p.Permits(stored) {
		active = stored
	}
	if err := m.persistActiveRole(active); err != nil {
		m.log.Warn().Err(err).Msg("persist active role")
	}

	if snap, changed := m.swapIfChanged(p, active); changed {
		m.notify(snap)
	}
}

func (m *Manager) loadPrincipal(store Store, scope string) *domain.Principal {
	raw, ok, err := store.Get(KeyAuthUser)
	if err != nil {
		m.log.Warn().Err(err).Str("scope", scope).Msg("read principal")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	p, err := decodePrincipal(raw)
	if err != nil {
		m.log.Warn().Err(err).Str("scope", scope).Msg("discarding malformed principal")
		if err := store.Delete(KeyAuthUser); err != nil {
			m.log.Warn().Err(err).Str("scope", scope).Msg("clear malformed principal")
		}
		return nil
	}
	return p
}

func (m *Manager) persistActiveRole(role string) error {
	if role == "" {
		return m.durable.Delete(KeyActiveRole)
	}
	return m.durable.Set(KeyActiveRole, role)
}

func (m *Manager) swap(p *domain.Principal, active string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.principal = p
	m.activeRole = active
	return Snapshot{Principal: p.Clone(), ActiveRole: active}
}

func (m *Manager) swapIfChanged(p *domain.Principal, active string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := Snapshot{Principal: p, ActiveRole: active}
	if next.equal(Snapshot{Principal: m.principal, ActiveRole: m.activeRole}) {
		return Snapshot{}, false
	}
	m.principal = p
	m.activeRole = active
	return Snapshot{Principal: p.Clone(), ActiveRole: active}, true
}

// notify runs outside m.mu so subscribers may read the manager.
func (m *Manager) notify(snap Snapshot) {
	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func decodePrincipal(raw string) (*domain.Principal, error) {
	var p domain.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	if p.ID == "" || !p.UserType.Valid() {
		return nil, fmt.Errorf("principal missing id or user type")
	}
	p.Normalize()
	return &p, nil
}

func principalJSON(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	b, _ := json.Marshal(p)
	return string(b)
}

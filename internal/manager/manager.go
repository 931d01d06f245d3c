// Package manager owns the registry of live trading sessions, one per user.
// Restarting a user's session joins the old loop before the replacement
// starts, so two loops never race on the same user's state.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/approval"
	"ladderbot/internal/engine"
	"ladderbot/internal/executor"
	"ladderbot/internal/logger"
)

// EventLogger records session lifecycle events for auditing. Optional.
type EventLogger interface {
	Append(ctx context.Context, userID, kind, detail string) error
}

// Deps are the collaborators shared by every session the manager creates.
// Live may be nil; non-mainnet sessions and a nil Live both fall back to the
// simulated executor.
type Deps struct {
	Oracle    engine.PriceOracle
	Live      executor.Executor
	Simulated executor.Executor
	Sink      engine.TradeSink
	Events    EventLogger
}

type entry struct {
	session   *engine.Session
	approvals *approval.Gateway
}

type Manager struct {
	deps            Deps
	params          engine.Params
	approvalPoll    time.Duration
	approvalTimeout time.Duration

	mu        sync.Mutex
	sessions  map[string]*entry
	userLocks map[string]*sync.Mutex
}

func New(deps Deps, params engine.Params, approvalPoll, approvalTimeout time.Duration) *Manager {
	return &Manager{
		deps:            deps,
		params:          params,
		approvalPoll:    approvalPoll,
		approvalTimeout: approvalTimeout,
		sessions:        make(map[string]*entry),
		userLocks:       make(map[string]*sync.Mutex),
	}
}

// userLock serializes session replacement per user. m.mu only guards the
// maps; the per-user lock is held across the whole stop-old/start-new
// sequence, which blocks on the old loop joining.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.userLocks[userID] = l
	}
	return l
}

// Start creates and launches a session for cfg.UserID, replacing any
// existing one. The old loop is stopped and joined first. Concurrent Starts
// for the same user serialize; exactly one loop survives. The registry entry
// is overwritten, never removed, so Status stays answerable mid-restart.
func (m *Manager) Start(cfg engine.Config) (engine.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return engine.Snapshot{}, fmt.Errorf("invalid session config: %w", err)
	}

	lock := m.userLock(cfg.UserID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	old := m.sessions[cfg.UserID]
	m.mu.Unlock()

	if old != nil {
		logger.Infof("manager: replacing session for user=%s", cfg.UserID)
		old.session.Stop()
	}

	gw := approval.NewGateway(m.approvalPoll, m.approvalTimeout)
	sess, err := engine.NewSession(cfg, m.params, engine.Deps{
		Oracle:    m.deps.Oracle,
		Executor:  m.executorFor(cfg.Network),
		Approvals: gw,
		Sink:      m.deps.Sink,
	})
	if err != nil {
		return engine.Snapshot{}, err
	}

	m.mu.Lock()
	m.sessions[cfg.UserID] = &entry{session: sess, approvals: gw}
	m.mu.Unlock()

	sess.Start()
	m.logEvent(cfg.UserID, "session_started", fmt.Sprintf(
		`{"token":%q,"mode":%q,"network":%q,"parts":%d,"tradeAmount":%v}`,
		cfg.TokenMint, cfg.Mode, cfg.Network, cfg.Parts, cfg.TradeAmountUSD))
	return sess.Status(), nil
}

// Stop halts the user's session loop. The entry stays registered so Status
// keeps serving the final state.
func (m *Manager) Stop(userID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	e, err := m.lookup(userID)
	if err != nil {
		return err
	}
	e.session.Stop()
	m.logEvent(userID, "session_stopped", "")
	logger.Infof("manager: session stopped user=%s", userID)
	return nil
}

// logEvent is best effort; audit failures never block session control.
func (m *Manager) logEvent(userID, kind, detail string) {
	if m.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.deps.Events.Append(ctx, userID, kind, detail); err != nil {
		logger.Warnf("manager: event log write failed user=%s kind=%s: %v", userID, kind, err)
	}
}

func (m *Manager) Status(userID string) (engine.Snapshot, error) {
	e, err := m.lookup(userID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return e.session.Status(), nil
}

func (m *Manager) PendingApprovals(userID string) ([]approval.Pending, error) {
	e, err := m.lookup(userID)
	if err != nil {
		return nil, err
	}
	return e.approvals.Pending(), nil
}

func (m *Manager) Approve(userID, approvalID string) error {
	e, err := m.lookup(userID)
	if err != nil {
		return err
	}
	return e.approvals.Resolve(approvalID, true)
}

func (m *Manager) Reject(userID, approvalID string) error {
	e, err := m.lookup(userID)
	if err != nil {
		return err
	}
	return e.approvals.Resolve(approvalID, false)
}

// StopAll joins every active session. Used at shutdown. Taking each user's
// lock means an in-flight Start finishes first and its session is joined too.
func (m *Manager) StopAll() {
	m.mu.Lock()
	users := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		users = append(users, u)
	}
	m.mu.Unlock()

	stopped := 0
	for _, u := range users {
		lock := m.userLock(u)
		lock.Lock()
		m.mu.Lock()
		e := m.sessions[u]
		m.mu.Unlock()
		if e != nil {
			e.session.Stop()
			stopped++
		}
		lock.Unlock()
	}
	logger.Infof("manager: all sessions stopped (%d)", stopped)
}

func (m *Manager) lookup(userID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, fmt.Errorf("no session for user %s", userID)
	}
	return e, nil
}

func (m *Manager) executorFor(network engine.Network) executor.Executor {
	if network == engine.NetworkMainnet && m.deps.Live != nil {
		return m.deps.Live
	}
	return m.deps.Simulated
}

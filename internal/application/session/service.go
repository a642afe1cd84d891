// Package session runs drive sessions: the per-session event loop that owns
// the narrative machine, the sequence detectors, the navigator and the
// corruption timers, plus the service that starts, resumes and evicts them.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	mrand "math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	driveService "navidrive/internal/application/drive"
	"navidrive/internal/domain/corruption"
	"navidrive/internal/domain/narrative"
	domain "navidrive/internal/domain/session"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
)

const maxJanitorInterval = time.Minute

// Service defines the business logic for drive sessions
type Service interface {
	// Start creates a session at the root folder.
	Start(ctx context.Context) (*domain.StartResponse, error)
	// Get returns the live runtime of token, resuming it from storage when
	// it is not running.
	Get(ctx context.Context, token string) (*Runtime, error)
	End(ctx context.Context, token string) error
	// Run evicts idle and expired sessions until ctx is done, then closes
	// every live runtime.
	Run(ctx context.Context) error
	Active() int
}

// Config holds the session lifetimes and effect timing.
type Config struct {
	Expiry      time.Duration
	IdleTimeout time.Duration
	Timing      corruption.Timing
}

// Option configures a Service.
type Option func(*service)

// WithClock sets the clock used for expiry and overlays.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithRandomFactory sets how each runtime gets its random source.
func WithRandomFactory(f func() corruption.RandomSource) Option {
	return func(s *service) { s.newRandom = f }
}

type service struct {
	repo   domain.Repository
	drives driveService.Service
	cfg    Config

	now       func() time.Time
	newRandom func() corruption.RandomSource

	mu   sync.Mutex
	live map[string]*Runtime
	// closing is closed per token once an evicted runtime has flushed its
	// last snapshot. Resuming the token waits for it.
	closing  map[string]chan struct{}
	resuming singleflight.Group
}

// NewService creates a new session service
func NewService(repo domain.Repository, drives driveService.Service, cfg Config, opts ...Option) Service {
	s := &service{
		repo:   repo,
		drives: drives,
		cfg:    cfg,
		now:    time.Now,
		newRandom: func() corruption.RandomSource {
			return corruption.NewSource(mrand.Uint64())
		},
		live:    make(map[string]*Runtime),
		closing: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) runtimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Drives: s.drives,
		Repo:   s.repo,
		Timing: s.cfg.Timing,
		Random: s.newRandom(),
		Now:    s.now,
	}
}

func (s *service) Start(ctx context.Context) (*domain.StartResponse, error) {
	root, err := s.drives.Root(ctx)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Token:         token,
		State:         narrative.Initial(),
		CurrentFolder: root.ID,
		ExpiresAt:     s.now().Add(s.cfg.Expiry),
	}
	if err := s.repo.Create(ctx, snap); err != nil {
		return nil, err
	}

	s.adopt(NewRuntime(*snap, s.runtimeConfig()))
	logging.Info("session started", zap.String("session_id", snap.ID))

	return &domain.StartResponse{
		ID:        snap.ID,
		Token:     token,
		ExpiresAt: snap.ExpiresAt.Unix(),
	}, nil
}

func (s *service) adopt(rt *Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[rt.token] = rt
	metrics.SetActiveSessions(len(s.live))
}

// evict moves the runtime of token from live to closing. The caller must
// hold s.mu and call release once the runtime is closed.
func (s *service) evict(token string) (*Runtime, bool) {
	rt, ok := s.live[token]
	if !ok {
		return nil, false
	}
	delete(s.live, token)
	s.closing[token] = make(chan struct{})
	return rt, true
}

// release wakes resumes waiting on closed runtimes and reports the live
// count.
func (s *service) release(rts ...*Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range rts {
		if wait, ok := s.closing[rt.token]; ok {
			close(wait)
			delete(s.closing, rt.token)
		}
	}
	metrics.SetActiveSessions(len(s.live))
}

func (s *service) Get(ctx context.Context, token string) (*Runtime, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	rt, ok := s.live[token]
	s.mu.Unlock()
	if ok {
		if rt.ExpiresAt().Before(s.now()) {
			s.End(ctx, token)
			return nil, domain.ErrSessionExpired
		}
		return rt, nil
	}

	v, err, _ := s.resuming.Do(token, func() (any, error) {
		return s.resume(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Runtime), nil
}

func (s *service) resume(ctx context.Context, token string) (*Runtime, error) {
	s.mu.Lock()
	rt, ok := s.live[token]
	wait, closing := s.closing[token]
	s.mu.Unlock()
	if ok {
		return rt, nil
	}
	if closing {
		// The stored snapshot is only current once the evicted runtime
		// has flushed it.
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	snap, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if snap.IsExpired(s.now()) {
		if err := s.repo.Delete(ctx, token); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			logging.Warn("failed to delete expired session", zap.String("session_id", snap.ID), zap.Error(err))
		}
		return nil, domain.ErrSessionExpired
	}

	rt = NewRuntime(*snap, s.runtimeConfig())
	s.adopt(rt)
	logging.Info("session resumed", zap.String("session_id", snap.ID), zap.Stringer("level", snap.State.Level))
	return rt, nil
}

func (s *service) End(ctx context.Context, token string) error {
	s.mu.Lock()
	rt, ok := s.evict(token)
	s.mu.Unlock()

	if ok {
		rt.Close()
		// Stay in closing until the row is gone so a racing Get cannot
		// resume the ended session.
		defer s.release(rt)
	}
	err := s.repo.Delete(ctx, token)
	if ok && errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *service) Run(ctx context.Context) error {
	interval := min(s.cfg.IdleTimeout/2, maxJanitorInterval)
	if interval <= 0 {
		interval = maxJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep closes runtimes that have been idle too long or have expired, and
// deletes expired snapshots. Idle sessions stay resumable.
func (s *service) sweep(ctx context.Context) {
	now := s.now()

	var idle, expired []*Runtime
	s.mu.Lock()
	for token, rt := range s.live {
		switch {
		case rt.ExpiresAt().Before(now):
			expired = append(expired, rt)
		case s.cfg.IdleTimeout > 0 && now.Sub(rt.IdleSince()) > s.cfg.IdleTimeout:
			idle = append(idle, rt)
		default:
			continue
		}
		s.evict(token)
	}
	s.mu.Unlock()

	evicted := append(idle, expired...)
	for _, rt := range evicted {
		rt.Close()
	}
	s.release(evicted...)

	removed, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		logging.Warn("failed to delete expired sessions", zap.Error(err))
	}
	if len(idle) > 0 || len(expired) > 0 || removed > 0 {
		logging.Info("session sweep",
			zap.Int("idle", len(idle)),
			zap.Int("expired", len(expired)),
			zap.Int64("deleted", removed),
			zap.Int("active", s.Active()))
	}
}

func (s *service) closeAll() {
	var all []*Runtime
	s.mu.Lock()
	for token := range s.live {
		rt, _ := s.evict(token)
		all = append(all, rt)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, rt := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.Close()
		}()
	}
	wg.Wait()
	s.release(all...)
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

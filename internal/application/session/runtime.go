package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	driveService "navidrive/internal/application/drive"
	"navidrive/internal/domain/corruption"
	"navidrive/internal/domain/drive"
	"navidrive/internal/domain/narrative"
	"navidrive/internal/domain/sequence"
	domain "navidrive/internal/domain/session"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
)

// Konami unlocks navi mode.
var Konami = []string{
	"ArrowUp", "ArrowUp", "ArrowDown", "ArrowDown",
	"ArrowLeft", "ArrowRight", "ArrowLeft", "ArrowRight",
	"KeyB", "KeyA",
}

const (
	maxNotices      = 8
	overlayDuration = 3 * time.Second
	persistTimeout  = 5 * time.Second
)

// RuntimeConfig holds the collaborators of a Runtime.
type RuntimeConfig struct {
	Drives driveService.Service
	Repo   domain.Repository
	Timing corruption.Timing
	// Random is owned by the runtime and only used from its loop.
	Random corruption.RandomSource
	Now    func() time.Time
}

// OpenResult is what opening a clean item does.
type OpenResult struct {
	Ref      drive.Ref `json:"ref"`
	FolderID int64     `json:"folderId,omitempty"`
	URL      string    `json:"url,omitempty"`
	Notice   string    `json:"notice,omitempty"`
}

type fetchResult struct {
	gen     uint64
	listing driveService.Listing
}

// Runtime is one live drive session. All of its state is owned by a single
// goroutine; the exported methods hand work to that goroutine and wait for
// the answer, so clicks, keys, listing results and timer ticks are applied
// one at a time and never overlap.
type Runtime struct {
	id        string
	token     string
	expiresAt time.Time
	cfg       RuntimeConfig

	actions chan func(*core)
	results chan fetchResult
	persist chan domain.Snapshot

	cancel    context.CancelFunc
	done      chan struct{}
	persisted chan struct{}
	fetches   sync.WaitGroup
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

// NewRuntime starts the loop of the session described by snap.
func NewRuntime(snap domain.Snapshot, cfg RuntimeConfig) *Runtime {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Random == nil {
		cfg.Random = corruption.SharedSource{}
	}
	def := corruption.DefaultTiming()
	if cfg.Timing.CorruptionInterval <= 0 {
		cfg.Timing.CorruptionInterval = def.CorruptionInterval
	}
	if cfg.Timing.GlitchInterval <= 0 {
		cfg.Timing.GlitchInterval = def.GlitchInterval
	}
	if cfg.Timing.GlitchFlash <= 0 {
		cfg.Timing.GlitchFlash = def.GlitchFlash
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		id:        snap.ID,
		token:     snap.Token,
		expiresAt: snap.ExpiresAt,
		cfg:       cfg,
		actions:   make(chan func(*core)),
		results:   make(chan fetchResult),
		persist:   make(chan domain.Snapshot, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
		persisted: make(chan struct{}),
	}
	r.touch()

	c := newCore(ctx, r, snap)
	go r.persistLoop()
	go r.run(ctx, c)
	return r
}

// ID returns the session id.
func (r *Runtime) ID() string { return r.id }

// Token returns the bearer token the session was started with.
func (r *Runtime) Token() string { return r.token }

// ExpiresAt returns when the session stops being resumable.
func (r *Runtime) ExpiresAt() time.Time { return r.expiresAt }

// IdleSince returns the last time a caller used the runtime.
func (r *Runtime) IdleSince() time.Time {
	return time.Unix(0, r.lastSeen.Load())
}

func (r *Runtime) touch() {
	r.lastSeen.Store(r.cfg.Now().UnixNano())
}

// Done is closed once the loop has stopped.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// Close stops the loop, waits for in-flight listings and flushes the last
// snapshot. It is safe to call more than once.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done
		r.fetches.Wait()
		close(r.persist)
		<-r.persisted
	})
}

func (r *Runtime) run(ctx context.Context, c *core) {
	defer close(r.done)

	timing := r.cfg.Timing
	corruptionTick := time.NewTicker(timing.CorruptionInterval)
	defer corruptionTick.Stop()
	glitchTick := time.NewTicker(timing.GlitchInterval)
	defer glitchTick.Stop()
	flash := time.NewTimer(timing.GlitchFlash)
	flash.Stop()
	defer flash.Stop()

	c.fetch(c.nav.Generation(), c.nav.Current())

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case act := <-r.actions:
			act(c)
		case res := <-r.results:
			c.applyListing(res)
		case <-corruptionTick.C:
			c.tickCorruption()
			metrics.RecordCorruptionTick()
			c.broadcast()
		case <-glitchTick.C:
			if c.rollGlitch() {
				flash.Reset(timing.GlitchFlash)
				metrics.RecordGlitchFlash()
				c.broadcast()
			}
		case <-flash.C:
			c.glitch = false
			c.broadcast()
		}
	}
}

func (r *Runtime) persistLoop() {
	defer close(r.persisted)
	for snap := range r.persist {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := r.cfg.Repo.Update(ctx, &snap); err != nil {
			logging.Warn("failed to persist session", zap.String("session_id", snap.ID), zap.Error(err))
		}
		cancel()
	}
}

// call runs fn on the loop and returns its error.
func (r *Runtime) call(ctx context.Context, fn func(*core) error) error {
	r.touch()
	reply := make(chan error, 1)
	act := func(c *core) { reply <- fn(c) }

	select {
	case r.actions <- act:
	case <-r.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return domain.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View renders the session. filter narrows the items by name.
func (r *Runtime) View(ctx context.Context, filter string) (View, error) {
	var v View
	err := r.call(ctx, func(c *core) error {
		v = c.view(filter)
		return nil
	})
	return v, err
}

// Snapshot returns the persistable state of the session.
func (r *Runtime) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.call(ctx, func(c *core) error {
		s = c.snapshot()
		return nil
	})
	return s, err
}

// Navigate moves the session to folderID. The listing is fetched in the
// background; use WaitResolved to wait for it.
func (r *Runtime) Navigate(ctx context.Context, folderID int64) error {
	return r.call(ctx, func(c *core) error {
		c.navigate(folderID)
		return nil
	})
}

// GoUp moves to the parent folder and reports whether it moved.
func (r *Runtime) GoUp(ctx context.Context) (bool, error) {
	var moved bool
	err := r.call(ctx, func(c *core) error {
		gen, ok := c.nav.GoUp()
		if ok {
			c.active = nil
			c.fetch(gen, c.nav.Current())
			c.save()
			c.broadcast()
		}
		moved = ok
		return nil
	})
	return moved, err
}

// Refresh re-fetches the current folder.
func (r *Runtime) Refresh(ctx context.Context) error {
	return r.call(ctx, func(c *core) error {
		c.fetch(c.nav.Refresh(), c.nav.Current())
		return nil
	})
}

// WaitResolved blocks until the latest requested listing has been applied.
func (r *Runtime) WaitResolved(ctx context.Context) error {
	var ready chan struct{}
	err := r.call(ctx, func(c *core) error {
		ready = c.waiter()
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-ready:
		return nil
	case <-r.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open clicks an item. Corrupted items are refused with ErrAccessDenied and
// counted towards the narrative; clean folders are entered and clean files
// return their URL.
func (r *Runtime) Open(ctx context.Context, ref drive.Ref) (OpenResult, error) {
	var res OpenResult
	err := r.call(ctx, func(c *core) error {
		var err error
		res, err = c.open(ref)
		return err
	})
	return res, err
}

// Select toggles the selection of a visible item and reports whether it is
// now selected.
func (r *Runtime) Select(ctx context.Context, ref drive.Ref) (bool, error) {
	var selected bool
	err := r.call(ctx, func(c *core) error {
		if _, ok := c.visible(ref); !ok {
			return domain.ErrItemNotVisible
		}
		selected = c.nav.ToggleSelect(ref)
		c.broadcast()
		return nil
	})
	return selected, err
}

// Repair attempts to repair a corrupted item. The item itself is left as it
// is; the attempt only advances the narrative.
func (r *Runtime) Repair(ctx context.Context, ref drive.Ref) error {
	return r.call(ctx, func(c *core) error {
		return c.repair(ref)
	})
}

// Key feeds one key code to the sequence detectors.
func (r *Runtime) Key(ctx context.Context, key string) error {
	if key == "" {
		return domain.ErrInvalidKey
	}
	return r.call(ctx, func(c *core) error {
		c.key(key)
		return nil
	})
}

// Subscribe streams a fresh view after every change and tick. The channel
// keeps only the latest view and is closed when the session stops or
// cancel is called.
func (r *Runtime) Subscribe(ctx context.Context, filter string) (<-chan View, func(), error) {
	ch := make(chan View, 1)
	err := r.call(ctx, func(c *core) error {
		c.subscribers[ch] = filter
		offer(ch, c.view(filter))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		r.call(context.Background(), func(c *core) error {
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

// offer replaces whatever view is waiting in ch with v.
func offer(ch chan View, v View) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// core is the state owned by the loop goroutine.
type core struct {
	ctx context.Context
	rt  *Runtime

	machine   *narrative.Machine
	konami    *sequence.Detector[string]
	secret    *sequence.Detector[string]
	nav       *driveService.Navigator
	scheduler *corruption.Scheduler
	engine    *corruption.Engine
	glitcher  *corruption.Glitch
	rng       corruption.RandomSource

	active   corruption.ActiveMap
	glitch   bool
	naviMode bool
	overlays map[OverlayKind]time.Time
	notices  []Notice

	// applied is the generation of the last listing Apply accepted.
	applied     uint64
	waiters     []chan struct{}
	subscribers map[chan View]string
}

func newCore(ctx context.Context, r *Runtime, snap domain.Snapshot) *core {
	rng := r.cfg.Random
	c := &core{
		ctx:         ctx,
		rt:          r,
		machine:     narrative.NewMachine(snap.State, rng),
		nav:         driveService.NewNavigator(snap.CurrentFolder),
		scheduler:   corruption.NewScheduler(rng),
		engine:      corruption.NewEngine(rng),
		glitcher:    corruption.NewGlitch(rng),
		rng:         rng,
		naviMode:    snap.NaviMode,
		overlays:    make(map[OverlayKind]time.Time),
		subscribers: make(map[chan View]string),
	}
	c.konami = sequence.New(Konami, c.unlockNavi)
	c.armSecret()
	return c
}

func (c *core) now() time.Time { return c.rt.cfg.Now() }

func (c *core) level() narrative.Level { return c.machine.Level() }

// armSecret builds the secret detector once the machine has a secret.
func (c *core) armSecret() {
	if c.secret != nil {
		return
	}
	code := c.machine.State().SecretCode
	if len(code) == 0 {
		return
	}
	c.secret = sequence.New(code, func() {
		metrics.RecordSequenceMatch("secret")
		c.fire(narrative.Event{Kind: narrative.EventSecretMatched})
	})
}

func (c *core) fetch(gen uint64, folderID int64) {
	r := c.rt
	ctx := c.ctx
	r.fetches.Add(1)
	go func() {
		defer r.fetches.Done()
		l := r.cfg.Drives.Listing(ctx, folderID)
		select {
		case r.results <- fetchResult{gen: gen, listing: l}:
		case <-ctx.Done():
		}
	}()
}

func (c *core) applyListing(res fetchResult) {
	if !c.nav.Apply(res.gen, res.listing) {
		metrics.RecordStaleListing()
		return
	}
	if err := res.listing.Err; err != nil {
		logging.Warn("folder listing failed",
			zap.String("session_id", c.rt.id),
			zap.Int64("folder", res.listing.FolderID),
			zap.Error(err))
		c.notice("Failed to load folder contents")
	} else {
		c.active = nil
	}

	c.applied = res.gen
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
	c.broadcast()
}

func (c *core) waiter() chan struct{} {
	ch := make(chan struct{})
	if c.applied == c.nav.Generation() {
		close(ch)
		return ch
	}
	c.waiters = append(c.waiters, ch)
	return ch
}

func (c *core) navigate(folderID int64) {
	gen := c.nav.NavigateTo(folderID)
	c.active = nil
	c.fetch(gen, folderID)
	c.save()
	c.broadcast()
}

// visibleItems is the loaded listing filtered to the session's level.
func (c *core) visibleItems() []drive.Item {
	return c.nav.Contents().Visible(int(c.level())).Items()
}

func (c *core) visible(ref drive.Ref) (drive.Item, bool) {
	item, ok := c.nav.Find(ref)
	if !ok || item.RevealLevel > int(c.level()) {
		return drive.Item{}, false
	}
	return item, true
}

func (c *core) tickCorruption() {
	p := c.level().Presentation()
	items := c.visibleItems()
	for i := range items {
		items[i].CorruptionLevel = displayLevel(items[i], p)
	}
	c.active = c.scheduler.Tick(items)
}

func (c *core) rollGlitch() bool {
	if !c.level().Presentation().Flashes {
		return false
	}
	if !c.glitcher.Roll() {
		return false
	}
	c.glitch = true
	return true
}

func (c *core) open(ref drive.Ref) (OpenResult, error) {
	item, ok := c.visible(ref)
	if !ok {
		return OpenResult{}, domain.ErrItemNotVisible
	}
	if item.Corrupted {
		c.fire(narrative.Event{Kind: narrative.EventCorruptedClick})
		return OpenResult{}, domain.ErrAccessDenied
	}

	res := OpenResult{Ref: ref}
	if item.IsFolder() {
		c.navigate(item.ID)
		res.FolderID = item.ID
		return res, nil
	}

	res.URL = item.URL
	if msg, ok := fileNotices[item.Name]; ok {
		res.Notice = msg
		c.notice(msg)
		c.broadcast()
	}
	return res, nil
}

func (c *core) repair(ref drive.Ref) error {
	item, ok := c.visible(ref)
	if !ok {
		return domain.ErrItemNotVisible
	}
	if !item.Corrupted {
		return domain.ErrNotCorrupted
	}
	if c.level() < narrative.Level3 {
		return domain.ErrRepairLocked
	}
	metrics.RecordRepairAttempt()
	logging.Debug("repair attempted", zap.String("session_id", c.rt.id), zap.Stringer("ref", ref))
	c.fire(narrative.Event{Kind: narrative.EventRepair})
	return nil
}

func (c *core) key(key string) {
	c.konami.Feed(key)
	if c.secret != nil {
		c.secret.Feed(key)
	}
}

func (c *core) unlockNavi() {
	metrics.RecordSequenceMatch("konami")
	c.naviMode = true
	c.overlays[OverlayLayer14] = c.now().Add(overlayDuration)
	logging.Info("navi mode unlocked", zap.String("session_id", c.rt.id))
	c.save()
	c.broadcast()
}

func (c *core) fire(e narrative.Event) {
	tr := c.machine.Fire(e)
	for _, msg := range tr.Notices {
		c.notice(msg)
	}
	if tr.Changed() {
		metrics.RecordTransition(tr.To.String())
		logging.Info("narrative transition",
			zap.String("session_id", c.rt.id),
			zap.Stringer("from", tr.From),
			zap.Stringer("to", tr.To),
			zap.Stringer("event", e.Kind))
		if tr.To == narrative.Level3 {
			c.overlays[OverlayNeuralLink] = c.now().Add(overlayDuration)
		}
		c.armSecret()
		// A new level can reveal items; recompute on the next tick.
		c.active = nil
	}
	c.save()
	c.broadcast()
}

func (c *core) notice(text string) {
	c.notices = append(c.notices, Notice{Text: text, At: c.now()})
	if over := len(c.notices) - maxNotices; over > 0 {
		c.notices = append(c.notices[:0], c.notices[over:]...)
	}
}

func (c *core) snapshot() domain.Snapshot {
	return domain.Snapshot{
		ID:            c.rt.id,
		Token:         c.rt.token,
		State:         c.machine.State(),
		NaviMode:      c.naviMode,
		CurrentFolder: c.nav.Current(),
		ExpiresAt:     c.rt.expiresAt,
	}
}

// save queues the current snapshot, replacing one not yet written.
func (c *core) save() {
	select {
	case <-c.rt.persist:
	default:
	}
	c.rt.persist <- c.snapshot()
}

func (c *core) broadcast() {
	for ch, filter := range c.subscribers {
		offer(ch, c.view(filter))
	}
}

func (c *core) shutdown() {
	for ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
	c.save()
}

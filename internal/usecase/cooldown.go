package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Cooldown suppresses repeat notifications for a key inside a time window.
//
// Every check and mark for one key runs under that key's lock, so a
// check-then-mark from two concurrent cycles cannot both pass. When the
// repository fails the store fails closed: the caller is told to suppress.
type Cooldown struct {
	repo    domain.CooldownRepository
	window  time.Duration
	locks   *keyedMutex
	logger  *zap.Logger
	timeNow func() time.Time
}

func NewCooldown(repo domain.CooldownRepository, window time.Duration, logger *zap.Logger) *Cooldown {
	return &Cooldown{
		repo:    repo,
		window:  window,
		locks:   newKeyedMutex(),
		logger:  logger,
		timeNow: time.Now,
	}
}

func (c *Cooldown) Window() time.Duration {
	return c.window
}

// MayNotify reports whether key is outside its cooldown window.
func (c *Cooldown) MayNotify(ctx context.Context, key string) bool {
	unlock := c.locks.Lock(key)
	defer unlock()

	ok, err := c.mayNotify(ctx, key, c.timeNow())
	if err != nil {
		c.failClosed(key, err)
		return false
	}
	return ok
}

// MarkNotified records a notification for key at the given time, replacing
// any previous entry.
func (c *Cooldown) MarkNotified(ctx context.Context, key string, at time.Time) error {
	unlock := c.locks.Lock(key)
	defer unlock()
	return c.mark(ctx, key, at)
}

// TryAcquire atomically checks the window and marks key when it is free.
// It returns true for exactly one caller per window.
func (c *Cooldown) TryAcquire(ctx context.Context, key string) bool {
	unlock := c.locks.Lock(key)
	defer unlock()

	now := c.timeNow()
	ok, err := c.mayNotify(ctx, key, now)
	if err != nil {
		c.failClosed(key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := c.mark(ctx, key, now); err != nil {
		// Unrecorded alerts could repeat every cycle.
		c.failClosed(key, err)
		return false
	}
	return true
}

// Prune drops entries that can no longer suppress anything.
func (c *Cooldown) Prune(ctx context.Context) (int64, error) {
	n, err := c.repo.PruneCooldowns(ctx, c.timeNow().Add(-c.window))
	if err != nil {
		return 0, fmt.Errorf("%w: prune cooldowns: %v", domain.ErrStorageUnavailable, err)
	}
	return n, nil
}

func (c *Cooldown) mayNotify(ctx context.Context, key string, now time.Time) (bool, error) {
	entry, err := c.repo.GetCooldown(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: get cooldown %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	if entry == nil {
		return true, nil
	}
	return now.Sub(entry.LastNotifiedAt) >= c.window, nil
}

func (c *Cooldown) mark(ctx context.Context, key string, at time.Time) error {
	if err := c.repo.UpsertCooldown(ctx, domain.CooldownEntry{Key: key, LastNotifiedAt: at}); err != nil {
		return fmt.Errorf("%w: upsert cooldown %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (c *Cooldown) failClosed(key string, err error) {
	metrics.CooldownStorageErrors.Inc()
	c.logger.Warn("Cooldown storage failed, suppressing notification",
		zap.String("key", key), zap.Error(err))
}

// CooldownKey builds the dedup key of a candidate.
func CooldownKey(c domain.Candidate, perKind bool) string {
	if perKind {
		return c.Symbol + ":" + string(c.Kind)
	}
	return c.Symbol
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
)

// Lockout policy: maxFailures failed logins within a window locks the
// identity out for lockoutDuration. Idle records older than recordTTL are
// pruned opportunistically.
const (
	maxFailures     = 5
	lockoutDuration = 15 * time.Minute
	recordTTL       = 24 * time.Hour

	// cleanupProbability bounds store churn: roughly one login in ten
	// triggers a prune of idle records.
	cleanupProbability = 0.1
)

// limitRecord tracks failed logins for one lower-cased email. Timestamps
// are Unix milliseconds, matching the blob's JSON layout.
type limitRecord struct {
	FailedAttempts int   `json:"failedAttempts"`
	FirstAttempt   int64 `json:"firstAttempt"`
	LastAttempt    int64 `json:"lastAttempt"`
	LockedUntil    int64 `json:"lockedUntil,omitempty"`
}

// LimitStatus reports whether an identity is currently locked out.
type LimitStatus struct {
	Limited     bool
	MinutesLeft int
	Attempts    int
}

// LoginLimiter enforces the failed-login lockout policy. State lives in the
// "rate-limits" blob so it survives process restarts and is shared across
// instances.
type LoginLimiter struct {
	blobs blob.Store
	now   func() time.Time
}

// NewLoginLimiter creates a limiter over the given blob store.
func NewLoginLimiter(blobs blob.Store) *LoginLimiter {
	return &LoginLimiter{blobs: blobs, now: time.Now}
}

// Status reports whether the email is currently locked out. A lock that has
// expired reads as not limited; the stale record is cleared on the next
// successful login or by Cleanup.
func (l *LoginLimiter) Status(ctx context.Context, email string) (LimitStatus, error) {
	records, _, err := l.load(ctx)
	if err != nil {
		return LimitStatus{}, err
	}
	rec, ok := records[model.NormalizeEmail(email)]
	if !ok || rec.LockedUntil == 0 {
		return LimitStatus{}, nil
	}
	remaining := time.UnixMilli(rec.LockedUntil).Sub(l.now())
	if remaining <= 0 {
		return LimitStatus{}, nil
	}
	return LimitStatus{
		Limited:     true,
		MinutesLeft: int(math.Ceil(remaining.Minutes())),
		Attempts:    rec.FailedAttempts,
	}, nil
}

// RecordFailure counts a failed login. The fifth consecutive failure sets
// the lockout.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) error {
	key := model.NormalizeEmail(email)
	return l.modify(ctx, func(records map[string]limitRecord) {
		now := l.now().UnixMilli()
		rec := records[key]
		if rec.FailedAttempts == 0 {
			rec.FirstAttempt = now
		}
		rec.FailedAttempts++
		rec.LastAttempt = now
		if rec.FailedAttempts >= maxFailures {
			rec.LockedUntil = l.now().Add(lockoutDuration).UnixMilli()
		}
		records[key] = rec
	})
}

// Clear removes the record entirely. Called only after a verified
// successful login.
func (l *LoginLimiter) Clear(ctx context.Context, email string) error {
	key := model.NormalizeEmail(email)
	return l.modify(ctx, func(records map[string]limitRecord) {
		delete(records, key)
	})
}

// Cleanup prunes records idle longer than recordTTL with no active lock.
func (l *LoginLimiter) Cleanup(ctx context.Context) error {
	cutoff := l.now().Add(-recordTTL).UnixMilli()
	nowMs := l.now().UnixMilli()
	return l.modify(ctx, func(records map[string]limitRecord) {
		for key, rec := range records {
			if rec.LastAttempt < cutoff && rec.LockedUntil < nowMs {
				delete(records, key)
			}
		}
	})
}

// MaybeCleanup runs Cleanup with probability cleanupProbability. The login
// path calls this in a goroutine; it must never block a response.
func (l *LoginLimiter) MaybeCleanup(ctx context.Context) error {
	if rand.Float64() >= cleanupProbability {
		return nil
	}
	return l.Cleanup(ctx)
}

func (l *LoginLimiter) load(ctx context.Context) (map[string]limitRecord, int64, error) {
	data, version, err := l.blobs.Get(ctx, model.KeyRateLimits)
	if errors.Is(err, blob.ErrNotFound) {
		return map[string]limitRecord{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	records := map[string]limitRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decode rate-limit blob: %w", err)
	}
	return records, version, nil
}

// modify applies fn under a read-modify-write cycle, retrying a bounded
// number of times on version conflicts.
func (l *LoginLimiter) modify(ctx context.Context, fn func(map[string]limitRecord)) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		records, version, err := l.load(ctx)
		if err != nil {
			return err
		}
		fn(records)
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode rate-limit blob: %w", err)
		}
		if _, err := l.blobs.Put(ctx, model.KeyRateLimits, data, version); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("update rate-limit blob: %w", lastErr)
}

package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safebite/server/internal/models"
)

var ErrUnknownFeature = errors.New("unknown feature")

// Store persists per-user per-feature counters. GetQuota returns nil (no
// error) when the user has no row for the feature yet.
type Store interface {
	GetQuota(ctx context.Context, userID string, featureID models.FeatureID) (*models.FeatureQuota, error)
	SaveQuota(ctx context.Context, userID string, quota *models.FeatureQuota) error
}

// Result is the outcome of a ledger check. Quota exhaustion is a normal
// Allowed=false result, never an error.
type Result struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	Unlimited bool  `json:"unlimited"`
}

// UnlimitedResult is what premium usage resolves to: always allowed, and
// counters are not tracked so they cannot grow without bound.
func UnlimitedResult() Result {
	return Result{Allowed: true, Unlimited: true}
}

// Ledger meters feature usage against the free-tier catalog. Mutations for
// a single user+feature pair are serialized through a keyed mutex, so
// unrelated features never block each other.
type Ledger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

func (l *Ledger) lockFor(userID string, featureID models.FeatureID) *sync.Mutex {
	key := userID + "/" + string(featureID)

	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// CheckAndConsume atomically checks the counter and, if the request fits,
// increments it. On Allowed=false the counter is unchanged; there is no
// partial consumption.
func (l *Ledger) CheckAndConsume(ctx context.Context, userID string, featureID models.FeatureID, amount int64) (Result, error) {
	return l.evaluate(ctx, userID, featureID, amount, true)
}

// Check evaluates the counter without consuming. Rollover is still applied
// and persisted, so repeated peeks observe the same window a consume would.
func (l *Ledger) Check(ctx context.Context, userID string, featureID models.FeatureID, amount int64) (Result, error) {
	return l.evaluate(ctx, userID, featureID, amount, false)
}

func (l *Ledger) evaluate(ctx context.Context, userID string, featureID models.FeatureID, amount int64, consume bool) (Result, error) {
	cfg, ok := GetFeature(featureID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFeature, featureID)
	}
	if amount <= 0 {
		amount = 1
	}

	lock := l.lockFor(userID, featureID)
	lock.Lock()
	defer lock.Unlock()

	q, err := l.store.GetQuota(ctx, userID, featureID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load quota: %w", err)
	}

	now := l.now()
	if q == nil {
		// Missing rows (new user, or a feature added after the row set was
		// written) default to used=0 at the current configured limit.
		q = &models.FeatureQuota{
			FeatureID:    featureID,
			Used:         0,
			WindowStart:  now,
			WindowLength: cfg.WindowLength,
		}
	}

	rolled := rollover(q, now)
	if rolled {
		log.Debug().
			Str("user_id", userID).
			Str("feature_id", string(featureID)).
			Time("window_start", q.WindowStart).
			Msg("quota window rolled over")
	}

	if q.Used+amount > cfg.Limit {
		if rolled {
			if err := l.store.SaveQuota(ctx, userID, q); err != nil {
				return Result{}, fmt.Errorf("failed to save quota: %w", err)
			}
		}
		return Result{Allowed: false, Remaining: cfg.Limit - q.Used}, nil
	}

	if consume {
		q.Used += amount
	}
	if consume || rolled {
		if err := l.store.SaveQuota(ctx, userID, q); err != nil {
			return Result{}, fmt.Errorf("failed to save quota: %w", err)
		}
	}

	return Result{Allowed: true, Remaining: cfg.Limit - q.Used}, nil
}

// rollover advances the window by however many whole window lengths have
// elapsed, never "to now", so a user cannot stretch a window by poking the
// ledger right after a reset. Returns true when the counter was reset.
func rollover(q *models.FeatureQuota, now time.Time) bool {
	if q.WindowLength <= 0 {
		return false
	}
	elapsed := now.Sub(q.WindowStart)
	if elapsed < q.WindowLength {
		return false
	}

	windows := elapsed / q.WindowLength
	q.WindowStart = q.WindowStart.Add(time.Duration(windows) * q.WindowLength)
	q.Used = 0
	return true
}

// Snapshot returns the post-rollover counter state for one feature without
// consuming, for the usage screen.
func (l *Ledger) Snapshot(ctx context.Context, userID string, featureID models.FeatureID) (*models.FeatureQuota, error) {
	cfg, ok := GetFeature(featureID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, featureID)
	}

	lock := l.lockFor(userID, featureID)
	lock.Lock()
	defer lock.Unlock()

	q, err := l.store.GetQuota(ctx, userID, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quota: %w", err)
	}

	now := l.now()
	if q == nil {
		return &models.FeatureQuota{
			FeatureID:    featureID,
			WindowStart:  now,
			WindowLength: cfg.WindowLength,
		}, nil
	}
	rollover(q, now)
	return q, nil
}

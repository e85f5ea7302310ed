package threshold

import (
	"context"

	"go.uber.org/zap"

	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/logger"
)

// DefaultPercent is the acceptance threshold used when a user has none.
const DefaultPercent = 15

// PreferencesReader reads user matching preferences.
type PreferencesReader interface {
	Preferences(ctx context.Context, userID string) (domuser.Preferences, error)
}

// Resolver turns a user's stored percentage into a [0,1] acceptance threshold.
type Resolver struct {
	users    PreferencesReader
	fallback float64
	logger   *zap.Logger
}

// New creates a resolver. defaultPercent outside 0..100 falls back to DefaultPercent.
func New(users PreferencesReader, defaultPercent int, logger *zap.Logger) *Resolver {
	if defaultPercent < 0 || defaultPercent > 100 {
		defaultPercent = DefaultPercent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, fallback: float64(defaultPercent) / 100, logger: logger}
}

// Default returns the service-wide threshold.
func (r *Resolver) Default() float64 { return r.fallback }

// Resolve never fails: an unset, zero, out-of-range or unreadable threshold
// resolves to the default, so the result is always in (0,1].
func (r *Resolver) Resolve(ctx context.Context, userID string) float64 {
	if userID == "" {
		return r.fallback
	}
	prefs, err := r.users.Preferences(ctx, userID)
	if err != nil {
		logger.FromContextOr(ctx, r.logger).Debug("threshold lookup failed, using default",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return r.fallback
	}
	t, ok := prefs.MatchingThreshold()
	if !ok || t <= 0 || t > 100 {
		return r.fallback
	}
	return float64(t) / 100
}

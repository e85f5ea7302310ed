package user

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/lostmatch/internal/domain"
)

// Preferences holds the matching-related settings of one user.
type Preferences struct {
	userID                string
	matchingThreshold     int
	hasThreshold          bool
	periodicSearchEnabled bool
	matchAlertsEnabled    bool
	active                bool
	email                 string
	name                  string
}

// Params carries the fields of a user projection.
// A nil MatchAlertsEnabled means alerts are on.
type Params struct {
	UserID                string
	MatchingThreshold     *int
	PeriodicSearchEnabled bool
	MatchAlertsEnabled    *bool
	Active                bool
	Email                 string
	Name                  string
}

// New validates and creates Preferences.
func New(p Params) (Preferences, error) {
	if p.UserID == "" {
		return Preferences{}, fmt.Errorf("user ID is required: %w", domain.ErrValidation)
	}
	if p.MatchingThreshold != nil && (*p.MatchingThreshold < 0 || *p.MatchingThreshold > 100) {
		return Preferences{}, fmt.Errorf("matching threshold %d out of [0,100]: %w", *p.MatchingThreshold, domain.ErrValidation)
	}
	return Reconstruct(p), nil
}

// Reconstruct creates Preferences without validation (storage hydration).
func Reconstruct(p Params) Preferences {
	pr := Preferences{
		userID:                p.UserID,
		periodicSearchEnabled: p.PeriodicSearchEnabled,
		matchAlertsEnabled:    true,
		active:                p.Active,
		email:                 p.Email,
		name:                  p.Name,
	}
	if p.MatchingThreshold != nil {
		pr.matchingThreshold = *p.MatchingThreshold
		pr.hasThreshold = true
	}
	if p.MatchAlertsEnabled != nil {
		pr.matchAlertsEnabled = *p.MatchAlertsEnabled
	}
	return pr
}

// UserID returns the user identifier.
func (p *Preferences) UserID() string { return p.userID }

// MatchingThreshold returns the custom threshold percentage, if set.
func (p *Preferences) MatchingThreshold() (int, bool) { return p.matchingThreshold, p.hasThreshold }

// PeriodicSearchEnabled reports whether the user opted into periodic re-matching.
func (p *Preferences) PeriodicSearchEnabled() bool { return p.periodicSearchEnabled }

// MatchAlertsEnabled reports whether match emails may be sent.
func (p *Preferences) MatchAlertsEnabled() bool { return p.matchAlertsEnabled }

// Active reports whether the account is active.
func (p *Preferences) Active() bool { return p.active }

// Email returns the contact address (may be empty).
func (p *Preferences) Email() string { return p.email }

// Name returns the display name.
func (p *Preferences) Name() string { return p.name }

// Settings is a partial update of the periodic-search settings.
type Settings struct {
	PeriodicSearchEnabled *bool
	MatchingThreshold     *int
}

// NewSettings keeps the valid parts of a settings update. A threshold outside
// [0,100] is ignored; an update with nothing valid left is rejected.
func NewSettings(enabled *bool, threshold *float64) (Settings, error) {
	var s Settings
	if enabled != nil {
		v := *enabled
		s.PeriodicSearchEnabled = &v
	}
	if threshold != nil && !math.IsNaN(*threshold) && *threshold >= 0 && *threshold <= 100 {
		v := int(math.Round(*threshold))
		s.MatchingThreshold = &v
	}
	if s.PeriodicSearchEnabled == nil && s.MatchingThreshold == nil {
		return Settings{}, domain.ErrInvalidSettings
	}
	return s, nil
}

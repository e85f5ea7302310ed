package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxDescriptionSize is the maximum description length in bytes.
const MaxDescriptionSize = 16384

// Kind tags the report variant.
type Kind string

// Report variants.
const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
	KindItem  Kind = "item"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%q: %w", s, domain.ErrInvalidReportKind)
	}
	return k, nil
}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	switch k {
	case KindLost, KindFound, KindItem:
		return true
	}
	return false
}

// Opposite returns the variant a report of kind k is matched against.
// Items are only ever candidates and have no opposite.
func (k Kind) Opposite() (Kind, bool) {
	switch k {
	case KindLost:
		return KindFound, true
	case KindFound:
		return KindLost, true
	}
	return "", false
}

// Status is the report lifecycle state as mirrored from the report service.
type Status string

// Report statuses.
const (
	StatusOpen     Status = "open"
	StatusMatched  Status = "matched"
	StatusResolved Status = "resolved"
)

// Terminal reports whether the status excludes the report from matching.
func (s Status) Terminal() bool { return s == StatusResolved }

// Params carries the fields of a report. Zero Status means open.
type Params struct {
	ID          string
	Kind        Kind
	OwnerUserID string
	Name        string
	Category    string
	Description string
	Status      Status
	Features    *FeatureBundle
	CreatedAt   time.Time
}

// Report is one variant of the tagged union {lost, found, item} (immutable value object).
// All variants share the same capability surface and are consumed uniformly.
type Report struct {
	id          string
	kind        Kind
	ownerUserID string
	name        string
	category    string
	description string
	status      Status
	features    FeatureBundle
	hasFeatures bool
	createdAt   time.Time
}

// New validates and creates a Report.
func New(p Params) (Report, error) {
	if p.ID == "" {
		return Report{}, fmt.Errorf("report ID is required: %w", domain.ErrValidation)
	}
	if len(p.ID) > 256 || !idRegex.MatchString(p.ID) {
		return Report{}, fmt.Errorf("report ID must be 1-256 alphanumeric, '_' or '-': %w", domain.ErrValidation)
	}
	if !p.Kind.Valid() {
		return Report{}, fmt.Errorf("%q: %w", p.Kind, domain.ErrInvalidReportKind)
	}
	if p.OwnerUserID == "" {
		return Report{}, fmt.Errorf("owner user ID is required: %w", domain.ErrValidation)
	}
	if len(p.Description) > MaxDescriptionSize {
		return Report{}, fmt.Errorf("description too large (max %d bytes): %w", MaxDescriptionSize, domain.ErrValidation)
	}
	switch p.Status {
	case "":
		p.Status = StatusOpen
	case StatusOpen, StatusMatched, StatusResolved:
	default:
		return Report{}, fmt.Errorf("unknown report status %q: %w", p.Status, domain.ErrValidation)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return Reconstruct(p), nil
}

// Reconstruct creates a Report without validation (storage hydration).
func Reconstruct(p Params) Report {
	r := Report{
		id:          p.ID,
		kind:        p.Kind,
		ownerUserID: p.OwnerUserID,
		name:        p.Name,
		category:    p.Category,
		description: p.Description,
		status:      p.Status,
		createdAt:   p.CreatedAt.UTC(),
	}
	if p.Features != nil && !p.Features.Empty() {
		r.features = *p.Features
		r.hasFeatures = true
	}
	return r
}

// ID returns the report identifier.
func (r *Report) ID() string { return r.id }

// Kind returns the variant tag.
func (r *Report) Kind() Kind { return r.kind }

// OwnerUserID returns the reporter (lost), finder (found) or owner (item).
func (r *Report) OwnerUserID() string { return r.ownerUserID }

// Name returns the item name.
func (r *Report) Name() string { return r.name }

// Category returns the item category.
func (r *Report) Category() string { return r.category }

// Description returns the free-text description.
func (r *Report) Description() string { return r.description }

// Status returns the lifecycle status.
func (r *Report) Status() Status { return r.status }

// CreatedAt returns the report creation time (UTC).
func (r *Report) CreatedAt() time.Time { return r.createdAt }

// Features returns the attached feature bundle, if any.
func (r *Report) Features() (FeatureBundle, bool) { return r.features, r.hasFeatures }

// HasDescription reports whether the report carries text usable for text matching.
func (r *Report) HasDescription() bool { return strings.TrimSpace(r.description) != "" }

// Ref returns the "kind:id" reference used in owner indexes.
func (r *Report) Ref() string { return string(r.kind) + ":" + r.id }

// ParseRef splits a "kind:id" reference.
func ParseRef(ref string) (Kind, string, error) {
	k, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed report ref %q: %w", ref, domain.ErrValidation)
	}
	kind, err := ParseKind(k)
	if err != nil {
		return "", "", err
	}
	return kind, id, nil
}

// CandidateFilter narrows a candidate pool.
type CandidateFilter struct {
	Kind               Kind
	ExcludeStatuses    []Status
	RequireFeatures    bool
	RequireDescription bool
}

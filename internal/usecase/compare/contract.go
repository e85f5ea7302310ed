package compare

import (
	"context"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// ImageComparator scores two feature bundles.
type ImageComparator interface {
	Compare(ctx context.Context, a, b report.FeatureBundle) (dommatch.ImageVerdict, error)
}

// TextBackend is an optional external text similarity service.
// Similarity must return a value in [0,1].
type TextBackend interface {
	Name() string
	HealthCheck(ctx context.Context) error
	Similarity(ctx context.Context, a, b string) (float64, error)
}

package report

import (
	"encoding/json"
	"fmt"
	"time"

	domreport "github.com/kailas-cloud/lostmatch/internal/domain/report"
)

const (
	fieldID          = "id"
	fieldKind        = "kind"
	fieldOwner       = "owner"
	fieldName        = "name"
	fieldCategory    = "category"
	fieldDescription = "description"
	fieldStatus      = "status"
	fieldCreatedAt   = "created_at"
	fieldFeatures    = "features"
)

// featuresJSON is the stored form of a feature bundle.
type featuresJSON struct {
	Descriptors      string            `json:"descriptors"`
	DescriptorsShape [2]int            `json:"descriptors_shape"`
	KeypointsCount   int               `json:"keypoints_count"`
	Keypoints        []json.RawMessage `json:"keypoints,omitempty"`
	ImageShape       [2]int            `json:"image_shape"`
}

// buildHashFields converts a domain Report into a flat map for HSET.
func buildHashFields(r *domreport.Report) (map[string]string, error) {
	m := map[string]string{
		fieldID:          r.ID(),
		fieldKind:        string(r.Kind()),
		fieldOwner:       r.OwnerUserID(),
		fieldName:        r.Name(),
		fieldCategory:    r.Category(),
		fieldDescription: r.Description(),
		fieldStatus:      string(r.Status()),
		fieldCreatedAt:   r.CreatedAt().Format(time.RFC3339Nano),
	}
	if fb, ok := r.Features(); ok {
		data, err := json.Marshal(featuresJSON{
			Descriptors:      fb.Descriptors(),
			DescriptorsShape: fb.DescriptorsShape(),
			KeypointsCount:   fb.KeypointsCount(),
			Keypoints:        fb.Keypoints(),
			ImageShape:       fb.ImageShape(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal features of %s: %w", r.ID(), err)
		}
		m[fieldFeatures] = string(data)
	}
	return m, nil
}

// parseHashFields converts a flat hash map back into a domain Report.
// A malformed feature bundle is treated as absent.
func parseHashFields(m map[string]string) domreport.Report {
	created, _ := time.Parse(time.RFC3339Nano, m[fieldCreatedAt])
	p := domreport.Params{
		ID:          m[fieldID],
		Kind:        domreport.Kind(m[fieldKind]),
		OwnerUserID: m[fieldOwner],
		Name:        m[fieldName],
		Category:    m[fieldCategory],
		Description: m[fieldDescription],
		Status:      domreport.Status(m[fieldStatus]),
		CreatedAt:   created,
	}
	if raw := m[fieldFeatures]; raw != "" {
		var fj featuresJSON
		if err := json.Unmarshal([]byte(raw), &fj); err == nil {
			fb := domreport.NewFeatureBundle(
				fj.Descriptors, fj.DescriptorsShape, fj.KeypointsCount, fj.Keypoints, fj.ImageShape,
			)
			p.Features = &fb
		}
	}
	return domreport.Reconstruct(p)
}

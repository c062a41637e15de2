package ledger

import (
	"fmt"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// Thresholds are the required approved points per admission type.
type Thresholds struct {
	Regular int
	Lateral int
}

// DefaultThresholds match the AICTE activity-point regulation.
var DefaultThresholds = Thresholds{Regular: 100, Lateral: 75}

// Required returns the points a student of the given admission type needs.
func (t Thresholds) Required(admission models.AdmissionType) int {
	if admission == models.AdmissionLateral {
		return t.Lateral
	}
	return t.Regular
}

// Summarize builds a student's standing from the aggregate row.
func (t Thresholds) Summarize(row models.StudentPointsRow) models.StudentPointsSummary {
	required := t.Required(row.AdmissionType)
	remaining := required - row.ApprovedPoints
	if remaining < 0 {
		remaining = 0
	}
	return models.StudentPointsSummary{
		StudentID:      row.ID,
		USN:            row.USN,
		FullName:       row.FullName,
		Department:     row.Department,
		Semester:       row.Semester,
		AdmissionType:  row.AdmissionType,
		TotalPoints:    row.ApprovedPoints,
		PendingPoints:  row.PendingPoints,
		RequiredPoints: required,
		Remaining:      remaining,
		Completed:      row.ApprovedPoints >= required,
	}
}

// ValidatePoints checks points against the optional category bounds.
func ValidatePoints(points int, category *models.AICTECategory) error {
	if points <= 0 {
		return fmt.Errorf("points must be positive")
	}
	if category == nil {
		return nil
	}
	if category.MinPointsRequired != nil && points < *category.MinPointsRequired {
		return fmt.Errorf("points %d below category minimum %d", points, *category.MinPointsRequired)
	}
	if category.MaxPointsAllowed != nil && points > *category.MaxPointsAllowed {
		return fmt.Errorf("points %d above category maximum %d", points, *category.MaxPointsAllowed)
	}
	return nil
}

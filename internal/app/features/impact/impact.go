// internal/app/features/impact/impact.go
package impact

import (
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
)

// Conversion factors for the impact estimate.
const (
	KgWastePerBag = 3.0
	KgCO2PerTree  = 21.0
	PointsPerHour = 10.0
)

// Input is the body of POST /api/impact/calculate. Omitted values count
// as zero.
type Input struct {
	Bags  float64 `json:"bags"`
	Trees float64 `json:"trees"`
	Hours float64 `json:"hours"`
}

// Result is the estimated impact of a volunteer activity.
type Result struct {
	WasteKg float64 `json:"waste_kg"`
	CO2Kg   float64 `json:"co2_kg"`
	Points  float64 `json:"points"`
}

// Calculate converts activity counts into an impact estimate. Negative
// inputs are rejected.
func Calculate(in Input) (Result, error) {
	var v inputval.Errors
	v.Add(in.Bags < 0, "bags cannot be negative")
	v.Add(in.Trees < 0, "trees cannot be negative")
	v.Add(in.Hours < 0, "hours cannot be negative")
	if err := v.Err(); err != nil {
		return Result{}, err
	}
	return Result{
		WasteKg: in.Bags * KgWastePerBag,
		CO2Kg:   in.Trees * KgCO2PerTree,
		Points:  in.Hours * PointsPerHour,
	}, nil
}

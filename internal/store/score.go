package store

import (
	"database/sql"
	"fmt"
	"math"
)

// ScoreKind tags the variant held by a Score.
type ScoreKind int

const (
	// ScoreUnset means no triangle has been formed for the location yet.
	ScoreUnset ScoreKind = iota
	// ScoreArea carries a finite, non-negative effective area.
	ScoreArea
	// ScoreUnremovable marks a boundary point that simplification must keep.
	ScoreUnremovable
)

// Score is the effective-area importance of a location. The unremovable
// variant is kept as a tag instead of +Inf so it never leaks into arithmetic.
type Score struct {
	Kind ScoreKind
	Area float64
}

// AreaScore returns a finite area score.
func AreaScore(area float64) Score {
	return Score{Kind: ScoreArea, Area: area}
}

// Unremovable returns the sentinel score for boundary points.
func Unremovable() Score {
	return Score{Kind: ScoreUnremovable}
}

// IsSet reports whether a score has been assigned.
func (s Score) IsSet() bool { return s.Kind != ScoreUnset }

// Float returns the score as a float64, with +Inf for unremovable and NaN
// for unset. Meant for display and ranking only.
func (s Score) Float() float64 {
	switch s.Kind {
	case ScoreArea:
		return s.Area
	case ScoreUnremovable:
		return math.Inf(1)
	default:
		return math.NaN()
	}
}

func (s Score) String() string {
	switch s.Kind {
	case ScoreArea:
		return fmt.Sprintf("%g", s.Area)
	case ScoreUnremovable:
		return "inf"
	default:
		return "unset"
	}
}

// columns maps a score onto its (score_kind, score_area) column values.
func (s Score) columns() (any, any) {
	switch s.Kind {
	case ScoreArea:
		return "area", s.Area
	case ScoreUnremovable:
		return "unremovable", nil
	default:
		return nil, nil
	}
}

func scoreFromColumns(kind sql.NullString, area sql.NullFloat64) Score {
	switch kind.String {
	case "area":
		return AreaScore(area.Float64)
	case "unremovable":
		return Unremovable()
	default:
		return Score{}
	}
}

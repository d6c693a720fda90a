package tracking

import (
	"argus-worker-go/internal/models"
)

const (
	// Displacement below this fraction of the frame counts as standing still
	minDisplacement = 0.02
	// Area growth/shrink ratios separating toward/away from static
	growRatio   = 1.2
	shrinkRatio = 0.8
)

// classifyDirection derives a coarse direction from the center history and
// the bounding-box area trend. An object that barely translates but grows
// is approaching the camera; one that shrinks is leaving.
func classifyDirection(positions []models.Position, areaHist []float64) models.Direction {
	if len(positions) < 2 {
		return models.DirectionUnknown
	}

	first := positions[0]
	last := positions[len(positions)-1]
	dx := last.X - first.X
	dy := last.Y - first.Y

	if absf(dx) >= minDisplacement || absf(dy) >= minDisplacement {
		if absf(dx) >= absf(dy) {
			if dx > 0 {
				return models.DirectionRight
			}
			return models.DirectionLeft
		}
		if dy > 0 {
			return models.DirectionDown
		}
		return models.DirectionUp
	}

	if len(areaHist) >= 2 && areaHist[0] > 0 {
		ratio := areaHist[len(areaHist)-1] / areaHist[0]
		if ratio >= growRatio {
			return models.DirectionToward
		}
		if ratio <= shrinkRatio {
			return models.DirectionAway
		}
	}

	return models.DirectionStatic
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

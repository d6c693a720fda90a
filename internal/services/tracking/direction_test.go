package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"argus-worker-go/internal/models"
)

func positions(points ...[2]float64) []models.Position {
	out := make([]models.Position, 0, len(points))
	for _, p := range points {
		out = append(out, models.Position{X: p[0], Y: p[1]})
	}
	return out
}

func TestClassifyDirection(t *testing.T) {
	tests := []struct {
		name      string
		positions []models.Position
		areaHist  []float64
		want      models.Direction
	}{
		{
			name:      "single sample is unknown",
			positions: positions([2]float64{0.5, 0.5}),
			want:      models.DirectionUnknown,
		},
		{
			name:      "moving right",
			positions: positions([2]float64{0.2, 0.5}, [2]float64{0.4, 0.5}),
			areaHist:  []float64{0.01, 0.01},
			want:      models.DirectionRight,
		},
		{
			name:      "moving left",
			positions: positions([2]float64{0.8, 0.5}, [2]float64{0.6, 0.51}),
			areaHist:  []float64{0.01, 0.01},
			want:      models.DirectionLeft,
		},
		{
			name:      "moving down wins over smaller horizontal drift",
			positions: positions([2]float64{0.5, 0.2}, [2]float64{0.51, 0.6}),
			areaHist:  []float64{0.01, 0.01},
			want:      models.DirectionDown,
		},
		{
			name:      "moving up",
			positions: positions([2]float64{0.5, 0.8}, [2]float64{0.5, 0.4}),
			areaHist:  []float64{0.01, 0.01},
			want:      models.DirectionUp,
		},
		{
			name:      "stationary but growing approaches the camera",
			positions: positions([2]float64{0.5, 0.5}, [2]float64{0.505, 0.5}),
			areaHist:  []float64{0.01, 0.02},
			want:      models.DirectionToward,
		},
		{
			name:      "stationary and shrinking leaves",
			positions: positions([2]float64{0.5, 0.5}, [2]float64{0.5, 0.505}),
			areaHist:  []float64{0.02, 0.01},
			want:      models.DirectionAway,
		},
		{
			name:      "stationary with stable area is static",
			positions: positions([2]float64{0.5, 0.5}, [2]float64{0.505, 0.505}),
			areaHist:  []float64{0.01, 0.011},
			want:      models.DirectionStatic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDirection(tt.positions, tt.areaHist))
		})
	}
}

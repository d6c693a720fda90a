package motion

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRects(t *testing.T) {
	tests := []struct {
		name  string
		rects []image.Rectangle
		gap   int
		want  []image.Rectangle
	}{
		{
			name:  "empty",
			rects: nil,
			gap:   10,
			want:  nil,
		},
		{
			name:  "single rect untouched",
			rects: []image.Rectangle{image.Rect(0, 0, 10, 10)},
			gap:   10,
			want:  []image.Rectangle{image.Rect(0, 0, 10, 10)},
		},
		{
			name: "overlapping rects merge",
			rects: []image.Rectangle{
				image.Rect(0, 0, 20, 20),
				image.Rect(10, 10, 30, 30),
			},
			gap:  0,
			want: []image.Rectangle{image.Rect(0, 0, 30, 30)},
		},
		{
			name: "near rects merge within gap",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(15, 0, 25, 10),
			},
			gap:  10,
			want: []image.Rectangle{image.Rect(0, 0, 25, 10)},
		},
		{
			name: "distant rects stay apart",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(100, 100, 110, 110),
			},
			gap: 10,
			want: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(100, 100, 110, 110),
			},
		},
		{
			name: "chain collapses transitively",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(40, 0, 50, 10),
				image.Rect(18, 0, 32, 10),
			},
			gap:  10,
			want: []image.Rectangle{image.Rect(0, 0, 50, 10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeRects(tt.rects, tt.gap)
			require.Len(t, got, len(tt.want))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

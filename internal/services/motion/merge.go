package motion

import "image"

// mergeRects folds overlapping or near-touching rectangles into one until
// stable. gap is the pixel distance below which two rects count as touching.
// Contours from a dilated mask often fragment one moving object; merging
// keeps blob counts meaningful.
func mergeRects(rects []image.Rectangle, gap int) []image.Rectangle {
	if len(rects) <= 1 {
		return rects
	}

	merged := append([]image.Rectangle(nil), rects...)
	for {
		changed := false
		for i := 0; i < len(merged) && !changed; i++ {
			for j := i + 1; j < len(merged); j++ {
				if !nearOverlap(merged[i], merged[j], gap) {
					continue
				}
				merged[i] = merged[i].Union(merged[j])
				merged = append(merged[:j], merged[j+1:]...)
				changed = true
				break
			}
		}
		if !changed {
			return merged
		}
	}
}

func nearOverlap(a, b image.Rectangle, gap int) bool {
	return a.Inset(-gap).Overlaps(b)
}

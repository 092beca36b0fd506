package detector

import (
	"cmp"
	"slices"
)

// order sorts faces by descending score. Equal scores fall back to reading
// order (top to bottom, then left to right) so "the first face" of an image
// is stable across runs and backends.
func order(faces []Face) {
	slices.SortStableFunc(faces, func(a, b Face) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.BoundingBox.Y1, b.BoundingBox.Y1); c != 0 {
			return c
		}
		return cmp.Compare(a.BoundingBox.X1, b.BoundingBox.X1)
	})
}

// suppress orders faces and drops every face overlapping a better one by more
// than threshold IoU. faces is reordered and compacted in place.
func suppress(faces []Face, threshold float32) []Face {
	order(faces)
	kept := faces[:0]
	for _, f := range faces {
		if !slices.ContainsFunc(kept, func(k Face) bool { return iou(k.BoundingBox, f.BoundingBox) > threshold }) {
			kept = append(kept, f)
		}
	}
	return kept
}

func iou(a, b BoundingBox) float32 {
	inter := a.intersect(b)
	if inter.Width() <= 0 || inter.Height() <= 0 {
		return 0
	}
	overlap := inter.Area()
	union := a.Area() + b.Area() - overlap
	if union <= 0 {
		return 0
	}
	return overlap / union
}

package imagery

import "log/slog"

// Pair is the before/after input of one analysis. Both rasters have the same
// shape once NewPair returns and neither is modified afterwards.
type Pair struct {
	Before *Raster
	After  *Raster
}

// NewPair validates the rasters and resamples After onto Before's grid when
// the shapes differ.
func NewPair(before, after *Raster) (Pair, error) {
	if before == nil || after == nil {
		return Pair{}, &InputError{Reason: "both before and after images are required"}
	}
	if before.Size() == 0 || after.Size() == 0 {
		return Pair{}, &InputError{Reason: "image has no pixels"}
	}
	if len(before.Pix) != before.Size()*Channels || len(after.Pix) != after.Size()*Channels {
		return Pair{}, &InputError{Reason: "pixel buffer does not match image shape"}
	}

	if !before.SameShape(after) {
		slog.Debug("resampling after image",
			"from_w", after.Width, "from_h", after.Height,
			"to_w", before.Width, "to_h", before.Height)
		after = Resample(after, before.Width, before.Height)
	}

	return Pair{Before: before, After: after}, nil
}

func (p Pair) Width() int  { return p.Before.Width }
func (p Pair) Height() int { return p.Before.Height }

// Diff is the per-channel absolute difference of the pair.
func (p Pair) Diff() *Raster {
	return AbsDiff(p.Before, p.After)
}

package profile

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

// Crop holds margins removed from each edge, in pixels.
type Crop struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// IsZero reports whether no cropping is requested.
func (c Crop) IsZero() bool { return c == Crop{} }

// Geometry is the scaled frame size plus per-side padding.
type Geometry struct {
	Width  int
	Height int
	PadX   int
	PadY   int
}

// Padded reports whether padding is required.
func (g Geometry) Padded() bool { return g.PadX > 0 || g.PadY > 0 }

// OuterWidth is the frame width including padding.
func (g Geometry) OuterWidth() int { return g.Width + 2*g.PadX }

// OuterHeight is the frame height including padding.
func (g Geometry) OuterHeight() int { return g.Height + 2*g.PadY }

// FitDimensions computes the output geometry for a source frame. The crop is
// applied first and the width is corrected by the pixel aspect ratio. The
// result is then clamped into the codec ranges keeping the aspect, padded
// when still below a minimum and rounded up to even dimensions.
func FitDimensions(src Size, crop Crop, par Fraction, v *VideoCodec) Geometry {
	ow := src.Width - crop.Left - crop.Right
	oh := src.Height - crop.Top - crop.Bottom
	if par.Num > 0 && par.Den > 0 && par.Num != par.Den {
		ow = int(float64(ow) * par.Float())
	}
	if ow <= 0 || oh <= 0 {
		return Geometry{}
	}
	if v == nil {
		return Geometry{Width: ow + ow%2, Height: oh + oh%2}
	}
	wmin, wmax := v.Width.bounds()
	hmin, hmax := v.Height.bounds()

	width, height := ow, oh
	switch {
	case ow < wmin:
		width = wmin
		height = int(float64(wmin) / float64(ow) * float64(oh))
	case ow > wmax:
		width = wmax
		height = int(float64(wmax) / float64(ow) * float64(oh))
	}
	switch {
	case height < hmin:
		height = hmin
		width = int(float64(hmin) / float64(oh) * float64(ow))
	case height > hmax:
		height = hmax
		width = int(float64(hmax) / float64(oh) * float64(ow))
	}
	// Fitting the height can push the width back out of range; fit the
	// width again and let padding make up the height.
	if width > wmax {
		width = wmax
		height = int(float64(wmax) / float64(ow) * float64(oh))
	}

	g := Geometry{Width: width, Height: height}
	if width < wmin {
		g.PadX = (wmin - width) / 2
	}
	if height < hmin {
		g.PadY = (hmin - height) / 2
	}
	g.Width += g.Width % 2
	g.Height += g.Height % 2
	return g
}

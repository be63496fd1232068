package displaylist

import "errors"

var (
	// ErrMalformedShape is returned by Shape.Validate for geometry or
	// styles that cannot be drawn.
	ErrMalformedShape = errors.New("displaylist: malformed shape")

	// ErrInvalidBitmap is returned for bitmaps whose pixel data does not
	// match their size.
	ErrInvalidBitmap = errors.New("displaylist: invalid bitmap")

	// ErrUnknownBlendMode is returned by ParseBlendMode.
	ErrUnknownBlendMode = errors.New("displaylist: unknown blend mode")
)

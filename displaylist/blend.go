package displaylist

import "fmt"

// BlendMode selects how a group is combined with what is already drawn.
type BlendMode uint8

// Blend modes.
const (
	BlendNormal BlendMode = iota
	BlendLayer
	BlendMultiply
	BlendScreen
	BlendLighten
	BlendDarken
	BlendDifference
	BlendAdd
	BlendSubtract
	BlendInvert
	BlendAlpha
	BlendErase
	BlendOverlay
	BlendHardLight
)

var blendNames = [...]string{
	BlendNormal:     "normal",
	BlendLayer:      "layer",
	BlendMultiply:   "multiply",
	BlendScreen:     "screen",
	BlendLighten:    "lighten",
	BlendDarken:     "darken",
	BlendDifference: "difference",
	BlendAdd:        "add",
	BlendSubtract:   "subtract",
	BlendInvert:     "invert",
	BlendAlpha:      "alpha",
	BlendErase:      "erase",
	BlendOverlay:    "overlay",
	BlendHardLight:  "hardlight",
}

// String returns the blend mode name used in content ("normal", "add", ...).
func (m BlendMode) String() string {
	if int(m) < len(blendNames) {
		return blendNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", m)
}

// ParseBlendMode parses a blend mode name.
func ParseBlendMode(s string) (BlendMode, error) {
	for i, name := range blendNames {
		if name == s {
			return BlendMode(i), nil
		}
	}
	return BlendNormal, fmt.Errorf("%w: %q", ErrUnknownBlendMode, s)
}

// NeedsGroup reports whether content drawn with m must be composited as a
// group instead of drawn straight into its parent.
func (m BlendMode) NeedsGroup() bool {
	return m != BlendNormal
}

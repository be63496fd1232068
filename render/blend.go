// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/stage/internal/blend"
)

// BlendState is a fixed-function blend configuration of a color target.
// Modes that a color target cannot express run as the VariantBlendFormula
// shader against a backdrop copy instead.
type BlendState uint8

// Blend states. All of them assume premultiplied source and destination.
const (
	// BlendNormal is source-over.
	BlendNormal BlendState = iota
	// BlendAdd adds the source color to the destination.
	BlendAdd
	// BlendSubtract subtracts the source color from the destination.
	BlendSubtract
	// BlendMultiply is exact over an opaque backdrop.
	BlendMultiply
	// BlendScreen is exact.
	BlendScreen
	// BlendLighten takes the per-channel maximum and needs Capabilities.BlendOps.
	BlendLighten
	// BlendDarken takes the per-channel minimum and needs Capabilities.BlendOps.
	BlendDarken
	// BlendAlpha scales the destination by the source alpha.
	BlendAlpha
	// BlendErase scales the destination by the inverse source alpha.
	BlendErase
	// BlendReplace writes the source unchanged.
	BlendReplace
	blendStateCount
)

var blendStateNames = [...]string{
	BlendNormal:   "normal",
	BlendAdd:      "add",
	BlendSubtract: "subtract",
	BlendMultiply: "multiply",
	BlendScreen:   "screen",
	BlendLighten:  "lighten",
	BlendDarken:   "darken",
	BlendAlpha:    "alpha",
	BlendErase:    "erase",
	BlendReplace:  "replace",
}

// String returns the state name.
func (b BlendState) String() string {
	if b < blendStateCount {
		return blendStateNames[b]
	}
	return fmt.Sprintf("BlendState(%d)", uint8(b))
}

// NeedsBlendOps reports whether b uses the min or max blend operation.
func (b BlendState) NeedsBlendOps() bool {
	return b == BlendLighten || b == BlendDarken
}

var over = blend.Component{Src: blend.One, Dst: blend.OneMinusSrcAlpha, Op: blend.Add}

// Factors returns the blend equation of b. Backends translate it to their
// native blend state; the software backend evaluates it directly.
func (b BlendState) Factors() blend.State {
	switch b {
	case BlendAdd:
		return blend.State{Color: blend.Component{Src: blend.One, Dst: blend.One, Op: blend.Add}, Alpha: over}
	case BlendSubtract:
		return blend.State{Color: blend.Component{Src: blend.One, Dst: blend.One, Op: blend.ReverseSubtract}, Alpha: over}
	case BlendMultiply:
		return blend.State{Color: blend.Component{Src: blend.Dst, Dst: blend.OneMinusSrcAlpha, Op: blend.Add}, Alpha: over}
	case BlendScreen:
		return blend.State{Color: blend.Component{Src: blend.One, Dst: blend.OneMinusSrc, Op: blend.Add}, Alpha: over}
	case BlendLighten:
		return blend.State{Color: blend.Component{Src: blend.One, Dst: blend.One, Op: blend.Max}, Alpha: over}
	case BlendDarken:
		return blend.State{Color: blend.Component{Src: blend.One, Dst: blend.One, Op: blend.Min}, Alpha: over}
	case BlendAlpha:
		c := blend.Component{Src: blend.Zero, Dst: blend.SrcAlpha, Op: blend.Add}
		return blend.State{Color: c, Alpha: c}
	case BlendErase:
		c := blend.Component{Src: blend.Zero, Dst: blend.OneMinusSrcAlpha, Op: blend.Add}
		return blend.State{Color: c, Alpha: c}
	case BlendReplace:
		return blend.Replace
	default:
		return blend.SourceOver
	}
}

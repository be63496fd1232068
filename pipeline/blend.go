// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/render"
)

// BlendStateFor maps a blend mode to fixed-function state. It returns
// false when the mode needs the blend formula shader on a device with
// caps.
func BlendStateFor(mode displaylist.BlendMode, caps render.Capabilities) (render.BlendState, bool) {
	switch mode {
	case displaylist.BlendNormal, displaylist.BlendLayer:
		return render.BlendNormal, true
	case displaylist.BlendMultiply:
		return render.BlendMultiply, true
	case displaylist.BlendScreen:
		return render.BlendScreen, true
	case displaylist.BlendLighten:
		if caps.BlendOps {
			return render.BlendLighten, true
		}
		return render.BlendNormal, false
	case displaylist.BlendDarken:
		if caps.BlendOps {
			return render.BlendDarken, true
		}
		return render.BlendNormal, false
	case displaylist.BlendAdd:
		return render.BlendAdd, true
	case displaylist.BlendSubtract:
		return render.BlendSubtract, true
	case displaylist.BlendAlpha:
		return render.BlendAlpha, true
	case displaylist.BlendErase:
		return render.BlendErase, true
	default:
		return render.BlendNormal, false
	}
}

// FormulaFor returns the shader formula of a blend mode. Alpha and erase
// have no formula; they are always fixed-function.
func FormulaFor(mode displaylist.BlendMode) (blend.Formula, bool) {
	switch mode {
	case displaylist.BlendNormal, displaylist.BlendLayer:
		return blend.FormulaNormal, true
	case displaylist.BlendMultiply:
		return blend.FormulaMultiply, true
	case displaylist.BlendScreen:
		return blend.FormulaScreen, true
	case displaylist.BlendLighten:
		return blend.FormulaLighten, true
	case displaylist.BlendDarken:
		return blend.FormulaDarken, true
	case displaylist.BlendDifference:
		return blend.FormulaDifference, true
	case displaylist.BlendAdd:
		return blend.FormulaAdd, true
	case displaylist.BlendSubtract:
		return blend.FormulaSubtract, true
	case displaylist.BlendInvert:
		return blend.FormulaInvert, true
	case displaylist.BlendOverlay:
		return blend.FormulaOverlay, true
	case displaylist.BlendHardLight:
		return blend.FormulaHardLight, true
	default:
		return blend.FormulaNormal, false
	}
}

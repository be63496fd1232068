// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/backend/software"
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/render"
)

func keys() []Key {
	var out []Key
	for _, v := range []render.ShaderVariant{render.VariantColor, render.VariantGradient, render.VariantBitmap, render.VariantCopy} {
		for _, b := range []render.BlendState{render.BlendNormal, render.BlendAdd, render.BlendScreen} {
			for _, s := range []int{1, 4} {
				out = append(out, Key{Blend: b, Variant: v, Format: render.FormatRGBA8, Samples: s})
			}
		}
	}
	return out
}

func TestCompileOncePerKey(t *testing.T) {
	dev := software.New()
	r := New(dev)
	defer r.Close()

	all := keys()
	handles := make(map[Key]render.PipelineHandle)
	for round := range 3 {
		order := append([]Key(nil), all...)
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, k := range order {
			h, err := r.GetOrCompile(k)
			require.NoError(t, err)
			if round == 0 {
				handles[k] = h
			} else {
				assert.Equal(t, handles[k], h, "key %s", k)
			}
		}
	}

	assert.Equal(t, len(all), dev.PipelineCompiles())
	st := r.Stats()
	assert.EqualValues(t, len(all), st.Compiles)
	assert.EqualValues(t, 2*len(all), st.Hits)
	assert.Equal(t, len(all), st.Live)
}

func TestCompileOnceConcurrent(t *testing.T) {
	dev := software.New()
	r := New(dev)
	defer r.Close()

	all := keys()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, k := range all {
				_, err := r.GetOrCompile(k)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(all), dev.PipelineCompiles())
}

func TestFailureIsCached(t *testing.T) {
	dev := software.New(software.WithPipelineFailure(func(d render.PipelineDesc) bool {
		return d.Variant == render.VariantGradient
	}))
	r := New(dev)
	defer r.Close()

	key := Key{Variant: render.VariantGradient, Format: render.FormatRGBA8, Samples: 1}
	for range 3 {
		_, err := r.GetOrCompile(key)
		assert.ErrorIs(t, err, ErrCompilationFailed)
	}
	assert.Equal(t, 1, dev.PipelineCompiles())
	assert.EqualValues(t, 1, r.Stats().Failures)
}

func TestResolveFallback(t *testing.T) {
	tests := []struct {
		name string
		fail func(render.PipelineDesc) bool
		key  Key
		want Key
	}{
		{
			name: "blend collapses to normal",
			fail: func(d render.PipelineDesc) bool { return d.Blend == render.BlendScreen },
			key:  Key{Blend: render.BlendScreen, Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1},
			want: Key{Blend: render.BlendNormal, Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1},
		},
		{
			name: "formula collapses to copy",
			fail: func(d render.PipelineDesc) bool { return d.Variant == render.VariantBlendFormula },
			key:  Key{Blend: render.BlendReplace, Variant: render.VariantBlendFormula, Format: render.FormatRGBA8, Samples: 1},
			want: Key{Blend: render.BlendNormal, Variant: render.VariantCopy, Format: render.FormatRGBA8, Samples: 1},
		},
		{
			name: "compiles",
			fail: func(render.PipelineDesc) bool { return false },
			key:  Key{Blend: render.BlendAdd, Variant: render.VariantBitmap, Format: render.FormatBGRA8, Samples: 4},
			want: Key{Blend: render.BlendAdd, Variant: render.VariantBitmap, Format: render.FormatBGRA8, Samples: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(software.New(software.WithPipelineFailure(tt.fail)))
			defer r.Close()
			got, h, err := r.Resolve(tt.key)
			require.NoError(t, err)
			assert.NotZero(t, h)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveNoFallback(t *testing.T) {
	r := New(software.New(software.WithPipelineFailure(func(render.PipelineDesc) bool { return true })))
	defer r.Close()
	key := Key{Blend: render.BlendAdd, Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1}
	got, _, err := r.Resolve(key)
	assert.ErrorIs(t, err, ErrCompilationFailed)
	assert.Equal(t, key, got)
}

func TestBlendOpsRequired(t *testing.T) {
	dev := software.New(software.WithoutBlendOps())
	r := New(dev)
	defer r.Close()

	key := Key{Blend: render.BlendLighten, Variant: render.VariantCopy, Format: render.FormatRGBA8, Samples: 1}
	_, err := r.GetOrCompile(key)
	assert.ErrorIs(t, err, ErrCompilationFailed)
	assert.ErrorIs(t, err, render.ErrUnsupported)
	assert.Equal(t, 0, dev.PipelineCompiles())
}

func TestClose(t *testing.T) {
	dev := software.New()
	r := New(dev)
	key := Key{Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1}
	_, err := r.GetOrCompile(key)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, 0, r.Stats().Live)
	_, err = r.GetOrCompile(key)
	assert.ErrorIs(t, err, ErrCompilationFailed)
}

func TestKeyFallbackChain(t *testing.T) {
	k := Key{Blend: render.BlendReplace, Variant: render.VariantBlendFormula}
	k, ok := k.Fallback()
	require.True(t, ok)
	assert.Equal(t, render.VariantCopy, k.Variant)
	_, ok = k.Fallback()
	assert.False(t, ok)

	assert.Equal(t, "color/add/rgba8unorm/x4", Key{Blend: render.BlendAdd, Format: render.FormatRGBA8, Samples: 4}.String())
}

func TestBlendStateFor(t *testing.T) {
	full := render.Capabilities{BlendOps: true}
	tests := []struct {
		mode  displaylist.BlendMode
		caps  render.Capabilities
		state render.BlendState
		ok    bool
	}{
		{displaylist.BlendNormal, full, render.BlendNormal, true},
		{displaylist.BlendLayer, full, render.BlendNormal, true},
		{displaylist.BlendMultiply, full, render.BlendMultiply, true},
		{displaylist.BlendScreen, full, render.BlendScreen, true},
		{displaylist.BlendLighten, full, render.BlendLighten, true},
		{displaylist.BlendLighten, render.Capabilities{}, render.BlendNormal, false},
		{displaylist.BlendDarken, full, render.BlendDarken, true},
		{displaylist.BlendDarken, render.Capabilities{}, render.BlendNormal, false},
		{displaylist.BlendDifference, full, render.BlendNormal, false},
		{displaylist.BlendAdd, full, render.BlendAdd, true},
		{displaylist.BlendSubtract, full, render.BlendSubtract, true},
		{displaylist.BlendInvert, full, render.BlendNormal, false},
		{displaylist.BlendAlpha, full, render.BlendAlpha, true},
		{displaylist.BlendErase, full, render.BlendErase, true},
		{displaylist.BlendOverlay, full, render.BlendNormal, false},
		{displaylist.BlendHardLight, full, render.BlendNormal, false},
	}
	for _, tt := range tests {
		state, ok := BlendStateFor(tt.mode, tt.caps)
		assert.Equal(t, tt.ok, ok, tt.mode.String())
		if ok {
			assert.Equal(t, tt.state, state, tt.mode.String())
		}
		if !ok {
			_, has := FormulaFor(tt.mode)
			assert.True(t, has, "%s needs a formula", tt.mode)
		}
	}
	f, _ := FormulaFor(displaylist.BlendHardLight)
	assert.Equal(t, blend.FormulaHardLight, f)
}

package blend

import (
	"math"
	"testing"
)

func near(a, b Color) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-4 {
			return false
		}
	}
	return true
}

func TestStateApply(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		src, dst Color
		want     Color
	}{
		{
			name:  "source over half red on half blue",
			state: SourceOver,
			src:   Color{0, 0, 0.5, 0.5},
			dst:   Color{0.5, 0, 0, 0.5},
			want:  Color{0.25, 0, 0.5, 0.75},
		},
		{
			name:  "source over opaque",
			state: SourceOver,
			src:   Color{1, 1, 1, 1},
			dst:   Color{0, 0, 1, 1},
			want:  Color{1, 1, 1, 1},
		},
		{
			name:  "replace",
			state: Replace,
			src:   Color{0.2, 0.2, 0.2, 0.2},
			dst:   Color{1, 1, 1, 1},
			want:  Color{0.2, 0.2, 0.2, 0.2},
		},
		{
			name: "additive clamps",
			state: State{
				Color: Component{One, One, Add},
				Alpha: Component{One, One, Add},
			},
			src:  Color{0.75, 0.5, 0, 1},
			dst:  Color{0.5, 0.25, 0, 1},
			want: Color{1, 0.75, 0, 1},
		},
		{
			name: "reverse subtract",
			state: State{
				Color: Component{One, One, ReverseSubtract},
				Alpha: Component{Zero, One, Add},
			},
			src:  Color{0.25, 0.75, 0, 1},
			dst:  Color{0.5, 0.5, 0.5, 1},
			want: Color{0.25, 0, 0.5, 1},
		},
		{
			name: "max ignores factors",
			state: State{
				Color: Component{Zero, Zero, Max},
				Alpha: Component{Zero, Zero, Max},
			},
			src:  Color{0.2, 0.8, 0.4, 1},
			dst:  Color{0.6, 0.1, 0.4, 1},
			want: Color{0.6, 0.8, 0.4, 1},
		},
		{
			name: "erase",
			state: State{
				Color: Component{Zero, OneMinusSrcAlpha, Add},
				Alpha: Component{Zero, OneMinusSrcAlpha, Add},
			},
			src:  Color{0, 0, 0, 0.25},
			dst:  Color{1, 1, 1, 1},
			want: Color{0.75, 0.75, 0.75, 0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Apply(tt.src, tt.dst); !near(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormulaApply(t *testing.T) {
	gray := Color{0.5, 0.5, 0.5, 1}
	tests := []struct {
		f        Formula
		src, dst Color
		want     Color
	}{
		{FormulaMultiply, Color{0.5, 1, 0, 1}, gray, Color{0.25, 0.5, 0, 1}},
		{FormulaScreen, Color{0.5, 1, 0, 1}, gray, Color{0.75, 1, 0.5, 1}},
		{FormulaDifference, Color{1, 0.25, 0, 1}, gray, Color{0.5, 0.25, 0.5, 1}},
		{FormulaLighten, Color{1, 0.25, 0, 1}, gray, Color{1, 0.5, 0.5, 1}},
		{FormulaDarken, Color{1, 0.25, 0, 1}, gray, Color{0.5, 0.25, 0, 1}},
		{FormulaHardLight, Color{0.25, 0.75, 1, 1}, gray, Color{0.25, 0.75, 1, 1}},
		{FormulaOverlay, Color{0.25, 0.75, 1, 1}, Color{0.25, 0.75, 1, 1}, Color{0.125, 0.875, 1, 1}},
		{FormulaInvert, Color{0.3, 0.3, 0.3, 1}, Color{1, 0.25, 0, 1}, Color{0, 0.75, 1, 1}},
		{FormulaAdd, Color{0.75, 0, 0, 1}, gray, Color{1, 0.5, 0.5, 1}},
		{FormulaSubtract, Color{0.75, 0.25, 0, 1}, gray, Color{0, 0.25, 0.5, 1}},
		{FormulaNormal, Color{0, 0, 0.5, 0.5}, Color{0.5, 0, 0, 0.5}, Color{0.25, 0, 0.5, 0.75}},
	}

	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			if got := tt.f.Apply(tt.src, tt.dst); !near(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeparableTransparentInputs(t *testing.T) {
	dst := Color{0.2, 0.4, 0.6, 0.8}
	for f := FormulaMultiply; f <= FormulaHardLight; f++ {
		if got := f.Apply(Color{}, dst); got != dst {
			t.Errorf("%v: transparent source changed backdrop: %v", f, got)
		}
		src := Color{0.1, 0.2, 0.3, 0.5}
		if got := f.Apply(src, Color{}); got != src {
			t.Errorf("%v: empty backdrop should yield source, got %v", f, got)
		}
	}
}

func TestMultiplyMatchesFixedFunctionWhenOpaque(t *testing.T) {
	// Dst * Src + Dst * (1 - Sa) is exact for an opaque backdrop.
	fixed := State{
		Color: Component{Dst, OneMinusSrcAlpha, Add},
		Alpha: Component{One, OneMinusSrcAlpha, Add},
	}
	src := Color{0.3, 0.2, 0.1, 0.5}
	dst := Color{0.8, 0.6, 0.4, 1}
	if a, b := fixed.Apply(src, dst), FormulaMultiply.Apply(src, dst); !near(a, b) {
		t.Errorf("fixed=%v formula=%v", a, b)
	}
}

func TestFormulaString(t *testing.T) {
	if FormulaOverlay.String() != "overlay" {
		t.Errorf("got %q", FormulaOverlay.String())
	}
	if Formula(200).String() != "unknown" {
		t.Errorf("got %q", Formula(200).String())
	}
}

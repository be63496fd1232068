package stroke

import (
	"testing"

	"github.com/gogpu/stage/internal/path"
)

// winding returns the non-zero winding number of p against all contours.
func winding(contours []path.Contour, p path.Point) int {
	w := 0
	for _, c := range contours {
		pts := c.Points
		for i := range pts {
			a, b := pts[i], pts[(i+1)%len(pts)]
			if a.Y <= p.Y {
				if b.Y > p.Y && isLeft(a, b, p) > 0 {
					w++
				}
			} else if b.Y <= p.Y && isLeft(a, b, p) < 0 {
				w--
			}
		}
	}
	return w
}

func isLeft(a, b, p path.Point) float32 {
	return (b.X-a.X)*(p.Y-a.Y) - (p.X-a.X)*(b.Y-a.Y)
}

func line(pts ...path.Point) []path.Contour {
	return []path.Contour{{Points: pts}}
}

func TestNewExpander(t *testing.T) {
	e := NewExpander(Style{Width: 2})
	if e.style.MiterLimit != 3 {
		t.Errorf("MiterLimit = %v, want default 3", e.style.MiterLimit)
	}
	if e.tolerance != path.DefaultTolerance {
		t.Errorf("tolerance = %v, want %v", e.tolerance, path.DefaultTolerance)
	}

	e.SetTolerance(-1)
	if e.tolerance != path.DefaultTolerance {
		t.Error("negative tolerance should be ignored")
	}
}

func TestExpandCaps(t *testing.T) {
	tests := []struct {
		name    string
		cap     LineCap
		inside  []path.Point
		outside []path.Point
	}{
		{
			name:    "butt",
			cap:     LineCapButt,
			inside:  []path.Point{{5, 0.5}, {5, -0.5}, {0.1, 0.9}},
			outside: []path.Point{{5, 1.5}, {-0.5, 0}, {10.5, 0}},
		},
		{
			name:    "square",
			cap:     LineCapSquare,
			inside:  []path.Point{{-0.5, 0}, {10.9, 0.9}, {-0.9, -0.9}},
			outside: []path.Point{{-1.1, 0}, {11.1, 0}},
		},
		{
			name:    "round",
			cap:     LineCapRound,
			inside:  []path.Point{{-0.9, 0}, {10.9, 0}, {10.6, 0.6}},
			outside: []path.Point{{-0.8, 0.8}, {10.8, -0.8}, {11.1, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpander(Style{Width: 2, Cap: tt.cap, Join: LineJoinMiter})
			out := e.Expand(line(path.Point{0, 0}, path.Point{10, 0}))
			if len(out) != 1 || !out[0].Closed {
				t.Fatalf("got %d contours, want one closed polygon", len(out))
			}
			for _, p := range tt.inside {
				if winding(out, p) == 0 {
					t.Errorf("%v should be covered", p)
				}
			}
			for _, p := range tt.outside {
				if winding(out, p) != 0 {
					t.Errorf("%v should not be covered", p)
				}
			}
		})
	}
}

func TestExpandJoins(t *testing.T) {
	corner := line(path.Point{0, 0}, path.Point{10, 0}, path.Point{10, 10})

	tests := []struct {
		name      string
		join      LineJoin
		miterTip  bool
		roundArea bool
	}{
		{"miter", LineJoinMiter, true, true},
		{"bevel", LineJoinBevel, false, false},
		{"round", LineJoinRound, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpander(Style{Width: 2, Join: tt.join, MiterLimit: 4})
			out := e.Expand(corner)

			if got := winding(out, path.Point{X: 10.9, Y: -0.9}) != 0; got != tt.miterTip {
				t.Errorf("miter tip covered = %v, want %v", got, tt.miterTip)
			}
			if got := winding(out, path.Point{X: 10.6, Y: -0.6}) != 0; got != tt.roundArea {
				t.Errorf("round area covered = %v, want %v", got, tt.roundArea)
			}
			// Inner corner and both arms are always covered.
			for _, p := range []path.Point{{9.8, 0.5}, {5, 0.9}, {10.9, 5}} {
				if winding(out, p) == 0 {
					t.Errorf("%v should be covered", p)
				}
			}
		})
	}
}

func TestExpandMiterLimit(t *testing.T) {
	// A very sharp turn exceeds the miter limit and falls back to a bevel.
	sharp := line(path.Point{0, 0}, path.Point{10, 0}, path.Point{0, 1})
	e := NewExpander(Style{Width: 2, Join: LineJoinMiter, MiterLimit: 2})
	out := e.Expand(sharp)

	if winding(out, path.Point{X: 14, Y: 0}) != 0 {
		t.Error("miter past the limit should be beveled")
	}
}

func TestExpandClosed(t *testing.T) {
	square := []path.Contour{{
		Points: []path.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		Closed: true,
	}}
	e := NewExpander(Style{Width: 2, Join: LineJoinMiter})
	out := e.Expand(square)

	if len(out) != 2 {
		t.Fatalf("closed contour produced %d loops, want 2", len(out))
	}
	if winding(out, path.Point{X: 5, Y: 5}) != 0 {
		t.Error("interior of a closed stroke should not be covered")
	}
	for _, p := range []path.Point{{0, 5}, {5, -0.5}, {10.5, 10.5}, {-0.9, -0.9}} {
		if winding(out, p) == 0 {
			t.Errorf("%v should be covered", p)
		}
	}
}

func TestExpandDegenerate(t *testing.T) {
	e := NewExpander(Style{Width: 2})

	if out := e.Expand(nil); len(out) != 0 {
		t.Errorf("empty input produced %d contours", len(out))
	}
	if out := e.Expand(line(path.Point{1, 1})); len(out) != 0 {
		t.Errorf("single point produced %d contours", len(out))
	}
	if out := e.Expand(line(path.Point{1, 1}, path.Point{1, 1})); len(out) != 0 {
		t.Errorf("zero-length line produced %d contours", len(out))
	}

	zero := NewExpander(Style{Width: 0})
	if out := zero.Expand(line(path.Point{0, 0}, path.Point{1, 0})); out != nil {
		t.Error("zero width should produce no outline")
	}
}

func TestExpandMultipleContours(t *testing.T) {
	e := NewExpander(Style{Width: 1})
	out := e.Expand([]path.Contour{
		{Points: []path.Point{{0, 0}, {10, 0}}},
		{Points: []path.Point{{0, 20}, {10, 20}}},
	})
	if len(out) != 2 {
		t.Fatalf("got %d contours, want 2", len(out))
	}
}

func TestRoundArcTolerance(t *testing.T) {
	e := NewExpander(Style{Width: 20, Cap: LineCapRound})
	e.SetTolerance(0.01)
	fine := e.Expand(line(path.Point{0, 0}, path.Point{10, 0}))

	e.SetTolerance(1)
	coarse := e.Expand(line(path.Point{0, 0}, path.Point{10, 0}))

	if len(fine[0].Points) <= len(coarse[0].Points) {
		t.Errorf("fine=%d coarse=%d: tighter tolerance should add arc points",
			len(fine[0].Points), len(coarse[0].Points))
	}
}

func BenchmarkExpandCorner(b *testing.B) {
	e := NewExpander(Style{Width: 3, Join: LineJoinRound, Cap: LineCapRound})
	in := line(path.Point{0, 0}, path.Point{100, 0}, path.Point{100, 100}, path.Point{0, 100})
	for i := 0; i < b.N; i++ {
		e.Expand(in)
	}
}

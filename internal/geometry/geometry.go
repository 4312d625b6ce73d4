package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// MinPolygonPoints is the smallest number of distinct vertices a zone polygon may have.
const MinPolygonPoints = 3

var ErrInvalidPolygon = errors.New("invalid polygon")

// Point is a vertex or a reference point in frame pixel coordinates.
type Point struct {
	X float64
	Y float64
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Polygon is an ordered list of vertices; the closing edge is implicit.
type Polygon []Point

// Validate checks that the polygon has at least MinPolygonPoints distinct, finite vertices.
func (p Polygon) Validate() error {
	distinct := make(map[Point]struct{}, len(p))
	for i, pt := range p {
		if !pt.finite() {
			return fmt.Errorf("%w: vertex %d is not finite", ErrInvalidPolygon, i)
		}
		distinct[pt] = struct{}{}
	}
	if len(distinct) < MinPolygonPoints {
		return fmt.Errorf("%w: need at least %d distinct points, got %d", ErrInvalidPolygon, MinPolygonPoints, len(distinct))
	}
	return nil
}

// Contains reports whether pt lies inside p using the even-odd rule.
//
// A horizontal ray is cast from pt towards +X and edge crossings are counted.
// Points lying exactly on an edge get whatever answer the crossing rule produces;
// callers must not rely on it.
func Contains(p Polygon, pt Point) (bool, error) {
	n := len(p)
	if n < MinPolygonPoints {
		return false, ErrInvalidPolygon
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		p1, p2 := p[j], p[i]
		if pt.Y <= math.Min(p1.Y, p2.Y) || pt.Y > math.Max(p1.Y, p2.Y) {
			continue
		}
		if pt.X > math.Max(p1.X, p2.X) {
			continue
		}
		// p1.Y != p2.Y here: a horizontal edge never passes the y-extent check above.
		xint := (pt.Y-p1.Y)*(p2.X-p1.X)/(p2.Y-p1.Y) + p1.X
		if p1.X == p2.X || pt.X <= xint {
			inside = !inside
		}
	}
	return inside, nil
}

// MarshalJSON encodes the polygon as [[x,y],...].
func (p Polygon) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(p))
	for i, pt := range p {
		pairs[i] = [2]float64{pt.X, pt.Y}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes [[x,y],...]. Every vertex must have exactly two coordinates.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var raw [][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode coordinates: %w", err)
	}

	poly := make(Polygon, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return fmt.Errorf("%w: vertex %d has %d coordinates", ErrInvalidPolygon, i, len(pair))
		}
		poly = append(poly, Point{X: pair[0], Y: pair[1]})
	}
	*p = poly
	return nil
}

// ParsePolygon decodes persisted zone coordinates. It does not validate the result.
func ParsePolygon(data []byte) (Polygon, error) {
	var p Polygon
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

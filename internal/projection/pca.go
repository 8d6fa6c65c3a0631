// Package projection reduces high-dimensional embeddings to 3D coordinates
// for visualization.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

// DefaultScale is the largest absolute coordinate after scaling.
const DefaultScale = 20.0

// Reducer maps n vectors to n positions, in order.
type Reducer func(vectors [][]float32) ([]apptype.Position3D, error)

// DefaultReducer is ReduceTo3D at DefaultScale.
func DefaultReducer(vectors [][]float32) ([]apptype.Position3D, error) {
	return ReduceTo3D(vectors, DefaultScale)
}

// WithScale returns a Reducer that uses the given scale.
func WithScale(scale float64) Reducer {
	return func(vectors [][]float32) ([]apptype.Position3D, error) {
		return ReduceTo3D(vectors, scale)
	}
}

var errPCA = errors.New("principal component analysis failed")

// ReduceTo3D projects vectors onto their top principal components (at most
// three) and rescales so the largest absolute coordinate equals scale.
// Axes beyond the number of available components are zero.
func ReduceTo3D(vectors [][]float32, scale float64) ([]apptype.Position3D, error) {
	n := len(vectors)
	switch n {
	case 0:
		return []apptype.Position3D{}, nil
	case 1:
		return []apptype.Position3D{{}}, nil
	}
	d := len(vectors[0])
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", apptype.ErrInvalidInput, i, len(v), d)
		}
	}
	out := make([]apptype.Position3D, n)
	if d == 0 {
		return out, nil
	}

	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		for j, x := range v {
			data.Set(i, j, float64(x))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, errPCA
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, avail := vecs.Dims()
	k := min(3, n, d, avail)

	// Center columns; PrincipalComponents does this on its own copy.
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			data.Set(i, j, data.At(i, j)-means[j])
		}
	}

	var proj mat.Dense
	proj.Mul(data, vecs.Slice(0, d, 0, k))

	coords := make([][3]float64, n)
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			v := proj.At(i, c)
			coords[i][c] = v
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	factor := 1.0
	if maxAbs > 0 {
		factor = scale / maxAbs
	}
	for i, c := range coords {
		out[i] = apptype.Position3D{X: c[0] * factor, Y: c[1] * factor, Z: c[2] * factor}
	}
	return out, nil
}

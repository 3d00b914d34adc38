package inference

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fullyConnected computes dst = x * w^T, with w shaped [out, in].
func fullyConnected(dst, x, w *mat.Dense) {
	dst.Mul(x, w.T())
}

// addBias adds b to every row of dst.
func addBias(dst *mat.Dense, b []float64) {
	rows, _ := dst.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(dst.RawRowView(i), b)
	}
}

// l2Normalize scales every row of src to unit length into dst.
// All-zero rows stay zero.
func l2Normalize(dst, src *mat.Dense) {
	dst.Copy(src)
	rows, _ := dst.Dims()
	for i := 0; i < rows; i++ {
		row := dst.RawRowView(i)
		norm := floats.Norm(row, 2)
		if norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
}

func relu(dst, src *mat.Dense) {
	dst.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, src)
}

func sigmoid(dst, src *mat.Dense) {
	dst.Apply(func(_, _ int, v float64) float64 { return 1 / (1 + math.Exp(-v)) }, src)
}

// knnEpsilon keeps the inverse distance finite for exact matches.
const knnEpsilon = 1e-9

// kNN treats 1 - x.key as the distance between a row of x and each row of
// keys, and writes the inverse-distance weighted mean of the targets of the
// k nearest keys.
func kNN(dst, x, keys, targets *mat.Dense, k int) {
	n, _ := keys.Dims()
	if k <= 0 || k > n {
		k = n
	}

	var scores mat.Dense
	scores.Mul(x, keys.T())

	rows, _ := x.Dims()
	_, outWidth := targets.Dims()
	idx := make([]int, n)
	dist := make([]float64, n)
	for i := 0; i < rows; i++ {
		for j := 0; j < n; j++ {
			idx[j] = j
			dist[j] = 1 - scores.At(i, j)
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

		out := dst.RawRowView(i)
		for c := range out {
			out[c] = 0
		}
		var total float64
		for _, j := range idx[:k] {
			w := 1 / (math.Max(dist[j], 0) + knnEpsilon)
			floats.AddScaled(out, w, targets.RawRowView(j)[:outWidth])
			total += w
		}
		floats.Scale(1/total, out)
	}
}

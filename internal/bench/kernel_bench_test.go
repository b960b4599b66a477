// Package bench holds the kernel microbenchmarks named in §3's benchmark
// harness supplement: per-metric, per-dimension throughput of the
// distance kernels, in the sub-benchmark style of the teacher's
// pkg/graph benchmarks.
package bench

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gigavector/gigavector/kernel"
)

var benchDims = []int{16, 32, 64, 128, 256, 512}

func randVector(n int, r *rand.Rand) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func BenchmarkDistance(b *testing.B) {
	metrics := []kernel.Metric{kernel.Euclidean, kernel.Cosine, kernel.Dot}
	r := rand.New(rand.NewSource(1))

	for _, dim := range benchDims {
		a := randVector(dim, r)
		c := randVector(dim, r)
		for _, m := range metrics {
			m := m
			b.Run(fmt.Sprintf("%s/dim=%d", m, dim), func(b *testing.B) {
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_, _ = kernel.Distance(m, a, c)
				}
			})
		}
	}
}

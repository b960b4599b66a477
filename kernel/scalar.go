package kernel

// ScalarDistance computes metric using the scalar reference
// implementation regardless of detected CPU features. Used by tests to
// verify SIMD-tier agreement (§8 testable property 4) and available to
// callers who need a deterministic, feature-independent result.
func ScalarDistance(metric Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{A: len(a), B: len(b)}
	}
	switch metric {
	case Euclidean:
		return euclideanScalar(a, b), nil
	case Cosine:
		return cosineScalar(a, b), nil
	case Dot:
		return dotScalar(a, b), nil
	default:
		return 0, &DimensionMismatchError{A: len(a), B: len(b)}
	}
}

// variantDistance exposes each dispatch tier directly, for agreement
// tests that need to force a tier other than whatever DetectFeatures
// picked for the current process.
func variantDistance(t tier, metric Metric, a, b []float32) float32 {
	table := buildDispatch(tierFeatures(t))
	return table[metric](a, b)
}

// tierFeatures synthesizes a Features value that selectTier maps back to
// t, so tests can exercise every tier irrespective of the host CPU.
func tierFeatures(t tier) Features {
	switch t {
	case tierAVX2:
		return Features{AVX2: true, FMA: true}
	case tierSSE:
		return Features{SSE: true}
	default:
		return Features{}
	}
}

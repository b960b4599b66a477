package kernel

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// Features is the process-wide immutable snapshot of the CPU capabilities
// relevant to distance-kernel dispatch (§4.1, §9 "Global CPU-feature
// cache"). It is populated once behind a sync.Once latch at first use and
// read without synchronization afterward.
type Features struct {
	SSE   bool
	SSE42 bool
	AVX   bool
	AVX2  bool
	FMA   bool
}

var (
	featuresOnce sync.Once
	features     Features
)

// probe reads the runtime CPU feature bits. Isolated from DetectFeatures
// so tests can call it directly without depending on the one-shot latch.
func probe() Features {
	return Features{
		SSE:   cpu.X86.HasSSE2,
		SSE42: cpu.X86.HasSSE42,
		AVX:   cpu.X86.HasAVX,
		AVX2:  cpu.X86.HasAVX2,
		FMA:   cpu.X86.HasFMA,
	}
}

// DetectFeatures returns the process-wide CPU feature snapshot, probing
// the hardware exactly once regardless of how many times it is called.
func DetectFeatures() Features {
	featuresOnce.Do(func() {
		features = probe()
	})
	return features
}

// tier names the dispatch tier chosen for a given Features snapshot: the
// widest lane width GigaVector has a kernel variant for.
type tier int

const (
	tierScalar tier = iota
	tierSSE
	tierAVX2
)

func selectTier(f Features) tier {
	switch {
	case f.AVX2 && f.FMA:
		return tierAVX2
	case f.SSE42 || f.SSE:
		return tierSSE
	default:
		return tierScalar
	}
}

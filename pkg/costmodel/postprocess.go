package costmodel

import (
	"fmt"
	"math"
)

// resultKind is what the network output means.
type resultKind int

const (
	resultCycles resultKind = iota
	resultHWOverhead
)

type postProcessing struct {
	kind resultKind
	// bounded clamps the overhead so a dense workload is never faster than theory.
	bounded bool
}

// postProcessingFor maps a model's output interface version to the meaning of its result.
func postProcessingFor(outputVersion int) (postProcessing, error) {
	switch outputVersion {
	case 0, 2:
		return postProcessing{kind: resultCycles}, nil
	case 1:
		return postProcessing{kind: resultHWOverhead, bounded: true}, nil
	case 3:
		return postProcessing{kind: resultHWOverhead}, nil
	}
	return postProcessing{}, fmt.Errorf("unsupported output interface version %d", outputVersion)
}

// cycles converts a network output into a cycle estimate.
func (p postProcessing) cycles(value float32, theoretical int, sparse bool) float64 {
	if p.kind == resultCycles {
		return float64(value)
	}
	return float64(theoretical) * p.overhead(value, sparse)
}

func (p postProcessing) overhead(value float32, sparse bool) float64 {
	v := float64(value)
	if p.bounded && !sparse && v < 1 {
		return 1
	}
	return v
}

// toCycles rounds up, mapping negative or non-finite estimates to zero.
func toCycles(v float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(math.Ceil(v))
}

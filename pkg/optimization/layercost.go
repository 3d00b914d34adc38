package optimization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// layerMaxWorkloads bounds the workloads of each tile when costing a layer.
const layerMaxWorkloads = 50

// weightTableEntryBytes is the weight table size per output channel.
const weightTableEntryBytes = 16

// LayerCoster is satisfied by *costmodel.CostModel.
type LayerCoster interface {
	DPUCoster
	DMA(device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, outputWriteTiles int) (uint32, error)
}

// TilingStrategy distributes a layer over CMX tiles.
type TilingStrategy int

const (
	// Clustering replicates the whole layer on every tile.
	Clustering TilingStrategy = iota
	// SplitOverH gives every tile a band of output rows.
	SplitOverH
	// SplitOverK gives every tile a slice of output channels.
	SplitOverK
)

var tilingStrategyNames = []string{"CLUSTERING", "SOH", "SOK"}

func (s TilingStrategy) String() string {
	if s < 0 || int(s) >= len(tilingStrategyNames) {
		return fmt.Sprintf("TilingStrategy(%d)", int(s))
	}
	return tilingStrategyNames[s]
}

func ParseTilingStrategy(s string) (TilingStrategy, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range tilingStrategyNames {
		if name == s {
			return TilingStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tiling strategy %q", s)
}

// TilingStrategies lists the strategies OptimalLayerCost compares, in
// tie-breaking order.
func TilingStrategies() []TilingStrategy {
	return []TilingStrategy{Clustering, SplitOverH, SplitOverK}
}

// LayerStrategy says how a layer is placed on the device.
type LayerStrategy struct {
	Tiling TilingStrategy
	// NDPU is the DPUs per tile; zero means the device's.
	NDPU int
	// NTiles is the number of CMX tiles; zero means one.
	NTiles int

	// InputInDDR adds the DMA fetching the input into CMX.
	InputInDDR bool
	// OutputInDDR adds the DMA spilling the output from CMX.
	OutputInDDR bool
	// NoPrefetch makes the weight transfer a lower bound of the layer
	// instead of overlapping the previous layer.
	NoPrefetch bool
}

// SplitAcrossTiles returns the part of l each of nTiles tiles computes.
// Empty parts are dropped.
func (l Layer) SplitAcrossTiles(s TilingStrategy, nTiles int) []Layer {
	nTiles = max(nTiles, 1)
	var tiles []Layer
	switch s {
	case SplitOverH:
		height := l.Output.Height
		maxH := ceilDiv(height, nTiles)
		for range nTiles {
			th := min(height, maxH)
			if th == 0 {
				break
			}
			t := l
			t.Output.Height = th
			t.Input.Height = inputDim(th, l.KernelH, l.Padding.Top+l.Padding.Bottom, l.StrideH)
			tiles = append(tiles, t)
			height -= th
		}
	case SplitOverK:
		channels := l.Output.Channels
		maxC := roundUp(ceilDiv(channels, nTiles), 16)
		for range nTiles {
			tc := min(channels, maxC)
			if tc == 0 {
				break
			}
			t := l
			t.Output.Channels = tc
			if l.Op != vpu.CONVOLUTION && l.Op != vpu.CM_CONVOLUTION {
				t.Input.Channels = tc
			}
			tiles = append(tiles, t)
			channels -= tc
		}
	default:
		for range nTiles {
			tiles = append(tiles, l)
		}
	}
	return tiles
}

// WeightFootprint is the bytes of weights and weight table of l.
func (l Layer) WeightFootprint() int {
	size := l.Output.DType.Bytes() * l.KernelW * l.KernelH
	if l.Op == vpu.CONVOLUTION || l.Op == vpu.CM_CONVOLUTION {
		size *= l.Input.Channels
	}
	return size + l.Output.Channels*weightTableEntryBytes
}

func saturate(v uint64) uint32 {
	return uint32(min(v, uint64(^uint32(0))))
}

// LayerCost is the cycles of layer under s: the slowest tile's optimal
// intra-tile split, bounded below by the weight transfer when weights are not
// prefetched, plus the DDR transfers of the activations.
func LayerCost(m LayerCoster, layer Layer, s LayerStrategy) (uint32, error) {
	nTiles := max(s.NTiles, 1)
	opts := SplitOptions{NDPU: s.NDPU, MaxWorkloads: layerMaxWorkloads}

	var cost uint64
	for i, t := range layer.SplitAcrossTiles(s.Tiling, nTiles) {
		_, p, err := IntraTileSplit(m, t, opts)
		if err != nil {
			return 0, fmt.Errorf("%v tile %d: %w", s.Tiling, i, err)
		}
		cost = max(cost, uint64(p.Cycles))
	}

	if s.NoPrefetch {
		weights := vpu.NewTensor(layer.WeightFootprint(), 1, 1, 1, vpu.UINT8)
		tiles := 1
		if s.Tiling == SplitOverK {
			tiles = nTiles
		}
		c, err := m.DMA(layer.Device, weights, weights, vpu.DRAM, vpu.CMX, tiles)
		if err != nil {
			return 0, fmt.Errorf("weight transfer: %w", err)
		}
		cost = max(cost, uint64(c))
	}
	if s.InputInDDR {
		c, err := m.DMA(layer.Device, layer.Input, layer.Input, vpu.DRAM, vpu.CMX, 1)
		if err != nil {
			return 0, fmt.Errorf("input transfer: %w", err)
		}
		cost += uint64(c)
	}
	if s.OutputInDDR {
		c, err := m.DMA(layer.Device, layer.Output, layer.Output, vpu.CMX, vpu.DRAM, 1)
		if err != nil {
			return 0, fmt.Errorf("output transfer: %w", err)
		}
		cost += uint64(c)
	}
	return saturate(cost), nil
}

// OptimalLayerCost tries every TilingStrategies entry in place of s.Tiling
// and returns the cheapest with its cost. Strategies that yield no valid
// split are skipped.
func OptimalLayerCost(m LayerCoster, layer Layer, s LayerStrategy) (TilingStrategy, uint32, error) {
	var (
		best     TilingStrategy
		bestCost uint32
		found    bool
		errs     []error
	)
	for _, tiling := range TilingStrategies() {
		s.Tiling = tiling
		cost, err := LayerCost(m, layer, s)
		if errors.Is(err, ErrNoValidSplit) {
			errs = append(errs, err)
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		if !found || cost < bestCost {
			best, bestCost, found = tiling, cost, true
		}
	}
	if !found {
		return 0, 0, errors.Join(errs...)
	}
	return best, bestCost, nil
}

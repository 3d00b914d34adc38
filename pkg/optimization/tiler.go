package optimization

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// DefaultMaxWorkloads is the depth of the DPU workload FIFO.
const DefaultMaxWorkloads = 128

// Z tiles are 2^e and 2^e+zTileStep channels for e in [minZTileExponent, maxZTileExponent).
const (
	zTileStep        = 16
	minZTileExponent = 4
	maxZTileExponent = 8
)

// ErrNoValidSplit is returned when no candidate split can be costed.
var ErrNoValidSplit = errors.New("no valid workload split")

// SplitStrategy is a way of cutting one layer into DPU workloads.
type SplitStrategy int

const (
	HWTiling SplitStrategy = iota
	ZTiling
	HTiling
	WTiling
)

var splitStrategyNames = []string{"HW", "Z", "H", "W"}

func (s SplitStrategy) String() string {
	if s < 0 || int(s) >= len(splitStrategyNames) {
		return fmt.Sprintf("SplitStrategy(%d)", int(s))
	}
	return splitStrategyNames[s]
}

func ParseSplitStrategy(s string) (SplitStrategy, error) {
	s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "_TILING")
	for i, name := range splitStrategyNames {
		if name == s {
			return SplitStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown split strategy %q", s)
}

// Target is what IntraTileSplit minimizes.
type Target int

const (
	Latency Target = iota
	Power
	Efficiency
)

type SplitOptions struct {
	// MaxWorkloads bounds the workloads of one split; zero means DefaultMaxWorkloads.
	MaxWorkloads int
	// NDPU is the number of DPUs the workloads are scheduled on; zero means
	// the DPUs of one tile of the device.
	NDPU int
	// RuntimeOverhead is added to every workload, in cycles.
	RuntimeOverhead uint32
	Target          Target
	// Strategies defaults to HW and Z tiling.
	Strategies []SplitStrategy
	// MaxLatency stops the search once elapsed and returns the best split
	// found so far. Zero searches every candidate.
	MaxLatency time.Duration
}

// DPUPowerer is satisfied by *costmodel.CostModel.
type DPUPowerer interface {
	DPUPower(wl vpu.DPUWorkload) (float64, error)
}

// Performance is the cost of a list of workloads run on one tile.
type Performance struct {
	Cycles uint32
	// Power is the average DPU power in mW, zero when the model has no
	// power estimate.
	Power float64
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundUp(a, b int) int {
	return ceilDiv(a, b) * b
}

// inputDim is the input extent that produces out outputs.
func inputDim(out, kernel, padding, stride int) int {
	return max((out-1)*stride-padding+kernel, 0)
}

// tileWorkload is the workload computing the output tile out of l.
func (l Layer) tileWorkload(out vpu.Tensor, mode vpu.ExecutionMode) vpu.DPUWorkload {
	in := l.Input
	in.Width = inputDim(out.Width, l.KernelW, l.Padding.Left+l.Padding.Right, l.StrideW)
	in.Height = inputDim(out.Height, l.KernelH, l.Padding.Top+l.Padding.Bottom, l.StrideH)
	in.Batch = out.Batch
	if l.Op != vpu.CONVOLUTION && l.Op != vpu.CM_CONVOLUTION {
		in.Channels = out.Channels
	}
	wl := l.Workload(mode)
	wl.Input, wl.Output = in, out
	return wl
}

// requireMaxZTile reports whether the layer's workloads are limited to 16,
// 32 or 64 output channels.
func requireMaxZTile(l Layer) bool {
	if l.Device != vpu.VPU_2_7 && l.Device != vpu.VPU_4_0 {
		return false
	}
	switch l.Op {
	case vpu.CM_CONVOLUTION, vpu.MAXPOOL, vpu.DW_CONVOLUTION, vpu.AVEPOOL:
		return true
	}
	return false
}

// splitModes returns the execution modes a split of l may use.
func splitModes(l Layer) ([]vpu.ExecutionMode, error) {
	if l.Device == vpu.VPU_2_7 || l.Device == vpu.VPU_4_0 {
		switch l.Op {
		case vpu.CM_CONVOLUTION, vpu.DW_CONVOLUTION, vpu.AVEPOOL, vpu.MAXPOOL:
			return []vpu.ExecutionMode{vpu.CUBOID_16x16}, nil
		case vpu.ELTWISE:
			return []vpu.ExecutionMode{vpu.CUBOID_8x16}, nil
		}
	}
	return candidateModes(l)
}

// splitsFromRange returns r/2^i for every power of two below r that divides
// r, keeping those not above limit.
func splitsFromRange(r, limit int) []int {
	var out []int
	for p := 1; p < r; p *= 2 {
		if r%p == 0 && r/p <= limit {
			out = append(out, r/p)
		}
	}
	return out
}

// splitPool merges 1, the multiples of nDPU up to maxSplits and the ranges
// of every bound.
func splitPool(nDPU, maxSplits int, bounds []int) []int {
	pool := []int{1}
	for i := nDPU; i <= maxSplits; i += nDPU {
		pool = append(pool, i)
	}
	for _, b := range bounds {
		pool = append(pool, splitsFromRange(b, maxSplits)...)
	}
	slices.Sort(pool)
	return slices.Compact(pool)
}

type tiler interface {
	// pool lists the workload counts worth trying, ascending.
	pool(nDPU int, mode vpu.ExecutionMode) []int
	// tile cuts the layer into n > 1 workloads, in zero or more ways.
	tile(n int, mode vpu.ExecutionMode) [][]vpu.DPUWorkload
}

type zTiler struct {
	layer        Layer
	maxWorkloads int
}

func (t zTiler) pool(nDPU int, mode vpu.ExecutionMode) []int {
	op := t.layer.Op
	if nDPU == 1 && (op == vpu.CONVOLUTION || op == vpu.ELTWISE) {
		return []int{1}
	}
	// Non-convolutions only split over Z in VECTOR mode.
	if mode != vpu.VECTOR && op != vpu.CONVOLUTION {
		return []int{1}
	}

	z := t.layer.Output.Channels
	var bounds []int
	for e := minZTileExponent; e < maxZTileExponent; e++ {
		tile := 1 << e
		bounds = append(bounds, ceilDiv(z, tile), ceilDiv(z, tile+zTileStep))
	}
	maxSplits := min(t.maxWorkloads, slices.Max(bounds))
	return splitPool(nDPU, maxSplits, bounds)
}

func (t zTiler) tile(n int, mode vpu.ExecutionMode) [][]vpu.DPUWorkload {
	var valid []int
	if requireMaxZTile(t.layer) {
		valid = []int{16, 32, 64}
	}

	grid := vpu.MPEGrid(mode)[2]
	channels := t.layer.Output.Channels
	if channels < grid || channels%grid != 0 {
		return nil
	}
	maxZ := roundUp(ceilDiv(channels, n), grid)

	wls := make([]vpu.DPUWorkload, 0, n)
	for range n {
		c := min(channels, maxZ)
		if c == 0 || (valid != nil && !slices.Contains(valid, c)) {
			return nil
		}
		out := t.layer.Output
		out.Channels = c
		wls = append(wls, t.layer.tileWorkload(out, mode))
		channels -= c
	}
	return [][]vpu.DPUWorkload{wls}
}

type hwTiler struct {
	layer        Layer
	maxWorkloads int
	// factors lists the {width, height} split counts whose product is n.
	factors func(n int) [][2]int
}

func (t hwTiler) pool(nDPU int, mode vpu.ExecutionMode) []int {
	if nDPU == 1 {
		return []int{1}
	}
	grid := vpu.MPEGrid(mode)
	out := t.layer.Output
	maxXY := ceilDiv(out.Width, grid[0]) * ceilDiv(out.Height, grid[1])
	return splitPool(nDPU, min(t.maxWorkloads, maxXY), []int{maxXY})
}

func (t hwTiler) tile(n int, mode vpu.ExecutionMode) [][]vpu.DPUWorkload {
	var splits [][]vpu.DPUWorkload
	for _, f := range t.factors(n) {
		if f[0] <= t.layer.Output.Width && f[1] <= t.layer.Output.Height {
			splits = append(splits, t.splitOverHW(f[0], f[1], mode))
		}
	}
	return splits
}

func (t hwTiler) splitOverHW(widthSplits, heightSplits int, mode vpu.ExecutionMode) []vpu.DPUWorkload {
	grid := vpu.MPEGrid(mode)
	out := t.layer.Output
	maxW := roundUp(ceilDiv(out.Width, widthSplits), grid[0])
	maxH := roundUp(ceilDiv(out.Height, heightSplits), grid[1])

	var wls []vpu.DPUWorkload
	for h := out.Height; h > 0; {
		th := min(h, maxH)
		for w := out.Width; w > 0; {
			tile := out
			tile.Width, tile.Height = min(w, maxW), th
			wls = append(wls, t.layer.tileWorkload(tile, mode))
			w -= tile.Width
		}
		h -= th
	}
	return wls
}

// factorPairs returns every {a, b} with a*b == n.
func factorPairs(n int) [][2]int {
	var pairs [][2]int
	for i := 1; i*i <= n; i++ {
		if n%i != 0 {
			continue
		}
		pairs = append(pairs, [2]int{n / i, i})
		if i*i != n {
			pairs = append(pairs, [2]int{i, n / i})
		}
	}
	return pairs
}

func heightOnly(n int) [][2]int { return [][2]int{{1, n}} }
func widthOnly(n int) [][2]int  { return [][2]int{{n, 1}} }

func hwTilingAllowed(l Layer, nDPU int, strategies []SplitStrategy) bool {
	if nDPU == 1 && slices.Contains(strategies, ZTiling) {
		return false
	}
	return !requireMaxZTile(l)
}

func tilers(l Layer, nDPU, maxWorkloads int, strategies []SplitStrategy) []tiler {
	var out []tiler
	hw := hwTilingAllowed(l, nDPU, strategies)
	for _, s := range strategies {
		switch s {
		case ZTiling:
			out = append(out, zTiler{layer: l, maxWorkloads: maxWorkloads})
		case HWTiling:
			if hw {
				out = append(out, hwTiler{layer: l, maxWorkloads: maxWorkloads, factors: factorPairs})
			}
		case HTiling:
			if hw {
				out = append(out, hwTiler{layer: l, maxWorkloads: maxWorkloads, factors: heightOnly})
			}
		case WTiling:
			if hw {
				out = append(out, hwTiler{layer: l, maxWorkloads: maxWorkloads, factors: widthOnly})
			}
		}
	}
	return out
}

func performance(m DPUCoster, wls []vpu.DPUWorkload, nDPU int, overhead uint32) (Performance, error) {
	var p Performance
	if len(wls) == 0 {
		return p, nil
	}
	costs := make([]uint32, len(wls))
	for i, wl := range wls {
		c, err := m.DPU(wl)
		if err != nil {
			return p, fmt.Errorf("workload %d: %w", i, err)
		}
		costs[i] = c
	}
	p.Cycles = Schedule(nDPU, costs, overhead)

	pm, ok := m.(DPUPowerer)
	if !ok || p.Cycles == 0 {
		return p, nil
	}
	// Each workload draws its power for its share of the layer's cycles.
	for i, wl := range wls {
		w, err := pm.DPUPower(wl)
		if err != nil {
			return p, fmt.Errorf("workload %d power: %w", i, err)
		}
		p.Power += w * float64(costs[i]) / float64(p.Cycles)
	}
	return p, nil
}

// LayerPerformance schedules workloads on the DPUs of one tile of their
// device and returns the cycles and average power. It does not optimize.
func LayerPerformance(m DPUCoster, workloads []vpu.DPUWorkload, runtimeOverhead uint32) (Performance, error) {
	if len(workloads) == 0 {
		return Performance{}, nil
	}
	device := workloads[0].Device
	for _, wl := range workloads[1:] {
		if wl.Device != device {
			return Performance{}, fmt.Errorf("workloads mix devices %v and %v", device, wl.Device)
		}
	}
	return performance(m, workloads, vpu.Characteristics(device).DPUsPerTile, runtimeOverhead)
}

func score(p Performance, target Target) float64 {
	switch target {
	case Power:
		return p.Power
	case Efficiency:
		if p.Power > 0 {
			return float64(p.Cycles) / p.Power
		}
	}
	return float64(p.Cycles)
}

// IntraTileSplit cuts layer into the workloads that minimize opts.Target when
// scheduled on opts.NDPU DPUs. Every valid execution mode is tried with
// every strategy and workload count. Splits the model rejects as invalid are
// skipped. Ties go to the split with fewer workloads, then to the first found.
func IntraTileSplit(m DPUCoster, layer Layer, opts SplitOptions) ([]vpu.DPUWorkload, Performance, error) {
	nDPU := opts.NDPU
	if nDPU == 0 {
		nDPU = vpu.Characteristics(layer.Device).DPUsPerTile
	}
	if nDPU < 0 {
		return nil, Performance{}, fmt.Errorf("number of DPUs must be positive, got %d", nDPU)
	}
	maxWorkloads := opts.MaxWorkloads
	if maxWorkloads <= 0 {
		maxWorkloads = DefaultMaxWorkloads
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = []SplitStrategy{HWTiling, ZTiling}
	}
	if opts.Target != Latency {
		if _, ok := m.(DPUPowerer); !ok {
			return nil, Performance{}, fmt.Errorf("optimizing for power needs a model with power estimates")
		}
	}
	modes, err := splitModes(layer)
	if err != nil {
		return nil, Performance{}, err
	}

	var (
		best     []vpu.DPUWorkload
		bestPerf Performance
		bestCost float64
	)
	consider := func(wls []vpu.DPUWorkload) error {
		p, err := performance(m, wls, nDPU, opts.RuntimeOverhead)
		if errors.Is(err, vpu.ErrInvalidWorkload) {
			return nil
		}
		if err != nil {
			return err
		}
		c := score(p, opts.Target)
		if c <= 0 {
			return nil
		}
		if best == nil || c < bestCost || (c == bestCost && len(wls) < len(best)) {
			best, bestPerf, bestCost = wls, p, c
		}
		return nil
	}

	start := time.Now()
search:
	for _, t := range tilers(layer, nDPU, maxWorkloads, strategies) {
		for _, mode := range modes {
			for _, n := range t.pool(nDPU, mode) {
				if opts.MaxLatency > 0 && time.Since(start) > opts.MaxLatency {
					break search
				}
				splits := [][]vpu.DPUWorkload{{layer.Workload(mode)}}
				if n > 1 {
					splits = t.tile(n, mode)
				}
				for _, wls := range splits {
					if err := consider(wls); err != nil {
						return nil, Performance{}, err
					}
				}
			}
		}
	}
	if best == nil {
		return nil, Performance{}, fmt.Errorf("splitting %v %v: %w", layer.Device, layer.Op, ErrNoValidSplit)
	}
	return best, bestPerf, nil
}

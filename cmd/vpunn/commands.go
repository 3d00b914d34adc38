package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/intel/npu-nn-cost-model/pkg/blobs"
	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"github.com/intel/npu-nn-cost-model/pkg/inference"
	"github.com/intel/npu-nn-cost-model/pkg/inference/synthetic"
	"github.com/intel/npu-nn-cost-model/pkg/optimization"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"github.com/intel/npu-nn-cost-model/pkg/vpunn"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDPUCommand(root *rootOptions) *cobra.Command {
	var flags layerFlags
	mode := ""

	cmd := &cobra.Command{
		Use:   "dpu",
		Short: "Estimate the cycles of a DPU workload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := flags.parse()
			if err != nil {
				return err
			}
			m, err := resolveMode(l.Device, mode)
			if err != nil {
				return err
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()

			cycles, err := model.DPU(ctx, l.Workload(m))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DPU cost: %d\n", cycles)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&mode, "mode", mode, "execution mode; defaults to the first mode of the device")
	return cmd
}

func resolveMode(device vpu.Device, s string) (vpu.ExecutionMode, error) {
	if s != "" {
		return vpu.ParseExecutionMode(s)
	}
	modes := vpu.ExecutionModes(device)
	if len(modes) == 0 {
		return 0, fmt.Errorf("no execution modes for device %v", device)
	}
	return modes[0], nil
}

func newDMACommand(root *rootOptions) *cobra.Command {
	var flags tensorFlags
	src, dst := "DRAM", "CMX"
	replication := 1

	cmd := &cobra.Command{
		Use:   "dma",
		Short: "Estimate the cycles of a DMA transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			device, in, out, err := flags.parse()
			if err != nil {
				return err
			}
			srcLoc, err := vpu.ParseMemoryLocation(src)
			if err != nil {
				return err
			}
			dstLoc, err := vpu.ParseMemoryLocation(dst)
			if err != nil {
				return err
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()

			cycles, err := model.DMAWithLocations(ctx, device, in, out, srcLoc, dstLoc, replication)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DMA cost: %d\n", cycles)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&src, "from", src, "source memory location")
	cmd.Flags().StringVar(&dst, "to", dst, "destination memory location")
	cmd.Flags().IntVar(&replication, "replication", replication, "number of destination tiles")
	return cmd
}

func newSHAVECommand(root *rootOptions) *cobra.Command {
	var flags tensorFlags
	kernel := "Sigmoid"
	list := false

	cmd := &cobra.Command{
		Use:   "shave",
		Short: "Estimate the cycles of a SHAVE kernel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if list {
				for _, name := range vpu.ShaveKernelNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			device, in, out, err := flags.parse()
			if err != nil {
				return err
			}
			wl, err := vpunn.CreateSHV(kernel, device, in, out)
			if err != nil {
				return err
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()

			cycles, err := model.SHAVE(ctx, wl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SHAVE cost: %d\n", cycles)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&kernel, "kernel", kernel, "SHAVE kernel name")
	cmd.Flags().BoolVar(&list, "list", list, "list the known kernels and exit")
	return cmd
}

// modelCoster adapts a vpunn.Model to the optimizer.
type modelCoster struct {
	ctx   context.Context
	model vpunn.Model
}

func (c modelCoster) DPU(wl vpu.DPUWorkload) (uint32, error) {
	return c.model.DPU(c.ctx, wl)
}

func (c modelCoster) DMA(device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, outputWriteTiles int) (uint32, error) {
	return c.model.DMAWithLocations(c.ctx, device, in, out, src, dst, outputWriteTiles)
}

func newModeCommand(root *rootOptions) *cobra.Command {
	var flags layerFlags

	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Select the cheapest execution mode for a layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := flags.parse()
			if err != nil {
				return err
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()

			mode, cycles, err := optimization.SelectOptimalExecutionMode(modelCoster{ctx: ctx, model: model}, l)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Optimal mode is %v (%d cycles)\n", mode, cycles)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newSplitCommand(root *rootOptions) *cobra.Command {
	var flags layerFlags
	var opts optimization.SplitOptions
	strategies := []string{"HW", "Z"}

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a layer into the DPU workloads of one tile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := flags.parse()
			if err != nil {
				return err
			}
			opts.Strategies = nil
			for _, name := range strategies {
				s, err := optimization.ParseSplitStrategy(name)
				if err != nil {
					return err
				}
				opts.Strategies = append(opts.Strategies, s)
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()

			wls, perf, err := optimization.IntraTileSplit(modelCoster{ctx: ctx, model: model}, l, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Optimal split: %d workloads, %d cycles\n", len(wls), perf.Cycles)
			for _, wl := range wls {
				fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", wl)
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&opts.NDPU, "dpus", opts.NDPU, "DPUs to schedule on; 0 uses the DPUs of one tile")
	cmd.Flags().IntVar(&opts.MaxWorkloads, "max-workloads", optimization.DefaultMaxWorkloads, "most workloads in a split")
	cmd.Flags().Uint32Var(&opts.RuntimeOverhead, "overhead", opts.RuntimeOverhead, "runtime overhead per workload, in cycles")
	cmd.Flags().StringSliceVar(&strategies, "strategies", strategies, "split strategies: HW, Z, H, W")
	cmd.Flags().DurationVar(&opts.MaxLatency, "max-latency", opts.MaxLatency, "stop searching after this long; 0 searches everything")
	return cmd
}

func newLayerCommand(root *rootOptions) *cobra.Command {
	var flags layerFlags
	var s optimization.LayerStrategy
	tiling := ""

	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Estimate the cycles of a layer spread over CMX tiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := flags.parse()
			if err != nil {
				return err
			}
			model, release, err := root.openModel(ctx)
			if err != nil {
				return err
			}
			defer release()
			m := modelCoster{ctx: ctx, model: model}

			if tiling == "" {
				best, cycles, err := optimization.OptimalLayerCost(m, l, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Layer cost: %d (%v)\n", cycles, best)
				return nil
			}
			if s.Tiling, err = optimization.ParseTilingStrategy(tiling); err != nil {
				return err
			}
			cycles, err := optimization.LayerCost(m, l, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Layer cost: %d (%v)\n", cycles, s.Tiling)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&tiling, "tiling", tiling, "CLUSTERING, SOH or SOK; empty picks the cheapest")
	cmd.Flags().IntVar(&s.NTiles, "tiles", 1, "CMX tiles")
	cmd.Flags().IntVar(&s.NDPU, "dpus", s.NDPU, "DPUs per tile; 0 uses the device's")
	cmd.Flags().BoolVar(&s.InputInDDR, "input-in-ddr", s.InputInDDR, "fetch the input from DDR")
	cmd.Flags().BoolVar(&s.OutputInDDR, "output-in-ddr", s.OutputInDDR, "spill the output to DDR")
	cmd.Flags().BoolVar(&s.NoPrefetch, "no-prefetch", s.NoPrefetch, "do not overlap the weight transfer")
	return cmd
}

type modelReport struct {
	Path        string `json:"path" yaml:"path"`
	SHA256      string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Initialized bool   `json:"initialized" yaml:"initialized"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	InputWidth  int    `json:"inputWidth,omitempty" yaml:"inputWidth,omitempty"`
	OutputWidth int    `json:"outputWidth,omitempty" yaml:"outputWidth,omitempty"`
}

func inspectModel(p string) modelReport {
	report := modelReport{Path: p}
	if sum, err := blobs.HashFile(p); err == nil {
		report.SHA256 = sum
	}
	cm := costmodel.New(p)
	report.Initialized = cm.Initialized()
	if !report.Initialized {
		return report
	}
	m := inference.Load(p)
	report.Name = m.Name()
	report.Version = cm.Version().String()
	report.InputWidth = m.InputWidth()
	report.OutputWidth = m.OutputWidth()
	return report
}

func writeReport(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func newInspectCommand() *cobra.Command {
	output := "yaml"

	cmd := &cobra.Command{
		Use:   "inspect MODEL...",
		Short: "Print the header and version of model files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reports []modelReport
			for _, p := range args {
				reports = append(reports, inspectModel(p))
			}
			return writeReport(cmd.OutOrStdout(), output, reports)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "output format: yaml or json")
	return cmd
}

func newBuildModelCommand() *cobra.Command {
	name := synthetic.DefaultName
	hidden := 32
	var seed uint64 = 1
	out := ""
	devicesDir := ""

	cmd := &cobra.Command{
		Use:   "build-model",
		Short: "Write a synthetic model with random weights, for smoke tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if devicesDir != "" {
				if err := synthetic.WriteDeviceModels(devicesDir, seed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote device models to %s\n", devicesDir)
				return nil
			}
			if out == "" {
				return fmt.Errorf("one of --out or --devices-dir is required")
			}

			data, err := synthetic.MLP(name, hidden, seed)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return fmt.Errorf("creating %q: %w", filepath.Dir(out), err)
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("writing model to %q: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", name, "model name, NAME-INPUT-OUTPUT")
	cmd.Flags().IntVar(&hidden, "hidden", hidden, "hidden layer width")
	cmd.Flags().Uint64Var(&seed, "seed", seed, "weight seed")
	cmd.Flags().StringVar(&out, "out", out, "model file to write")
	cmd.Flags().StringVar(&devicesDir, "devices-dir", devicesDir, "write <device>.vpunn for every device to this directory instead")
	return cmd
}

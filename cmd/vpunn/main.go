package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/costservice"
	"github.com/intel/npu-nn-cost-model/pkg/vpunn"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	ctx := context.Background()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	Model  string
	Server string
	Wait   time.Duration
}

func newRootCommand() *cobra.Command {
	opt := &rootOptions{Wait: 30 * time.Second}

	cmd := &cobra.Command{
		Use:           "vpunn",
		Short:         "Estimate NPU workload costs with a VPUNN cost model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opt.Model, "model", opt.Model, "path to a .vpunn model, relative to the costserver's model directory with --server; without one costs are analytical")
	cmd.PersistentFlags().StringVar(&opt.Server, "server", opt.Server, "costserver address; empty evaluates in process")
	cmd.PersistentFlags().DurationVar(&opt.Wait, "wait", opt.Wait, "how long to wait for the costserver to become ready")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		newDPUCommand(opt),
		newDMACommand(opt),
		newSHAVECommand(opt),
		newModeCommand(opt),
		newSplitCommand(opt),
		newLayerCommand(opt),
		newInspectCommand(),
		newBuildModelCommand(),
	)
	return cmd
}

// openModel returns the model named by --model on the engine selected by
// --server, and a func releasing the connection.
func (o *rootOptions) openModel(ctx context.Context) (vpunn.Model, func(), error) {
	if o.Server == "" {
		engine := &vpunn.LocalEngine{}
		return engine.CreateVPUCostModel(ctx, o.Model), func() {}, nil
	}

	client, err := costservice.Dial(o.Server)
	if err != nil {
		return nil, nil, err
	}
	engine := vpunn.NewRemoteEngine(client)
	waitCtx, cancel := context.WithTimeout(ctx, o.Wait)
	defer cancel()
	if err := engine.WaitReady(waitCtx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return engine.CreateVPUCostModel(ctx, o.Model), func() { client.Close() }, nil
}

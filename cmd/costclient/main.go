package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/costservice"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"github.com/intel/npu-nn-cost-model/pkg/vpunn"
	"k8s.io/klog/v2"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	serverAddr := ""
	flag.StringVar(&serverAddr, "server", serverAddr, "address of a costserver, for example 127.0.0.1:9876; empty evaluates in process")
	modelDir := "models"
	flag.StringVar(&modelDir, "model-dir", modelDir, "directory holding <device>.vpunn; ignored with a server")
	waitTimeout := 30 * time.Second
	flag.DurationVar(&waitTimeout, "wait", waitTimeout, "how long to wait for the costserver to become ready")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	var engine vpunn.Engine = &vpunn.LocalEngine{}
	if serverAddr != "" {
		client, err := costservice.Dial(serverAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		remote := vpunn.NewRemoteEngine(client)
		waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
		defer cancel()
		if err := remote.WaitReady(waitCtx); err != nil {
			return err
		}
		engine = remote
		// The costserver resolves model paths against its own model directory.
		modelDir = ""
		log.Info("Starting costclient", "server", serverAddr)
	}

	fmt.Println("===========================")
	for _, device := range []vpu.Device{vpu.VPU_2_0, vpu.VPU_2_7} {
		if err := estimate(ctx, engine, modelDir, device); err != nil {
			return err
		}
		fmt.Println("===========================")
	}
	return nil
}

func estimate(ctx context.Context, engine vpunn.Engine, modelDir string, device vpu.Device) error {
	in := vpunn.CreateTensor(56, 56, 64, 1, vpu.UINT8)
	out := vpunn.CreateTensor(56, 56, 64, 1, vpu.UINT8)

	mode := vpu.CUBOID_16x16
	if device == vpu.VPU_2_0 {
		mode = vpu.MATRIX
	}
	wl := vpunn.CreateWorkload(device, vpu.CONVOLUTION, in, out, mode, 3, 3, 1, 1, 0, 0, 0, 0)

	name := strings.ToLower(device.String())
	model := engine.CreateVPUCostModel(ctx, filepath.Join(modelDir, name+".vpunn"))
	if !model.Initialized() {
		fmt.Println("Model is NOT initialized!")
	} else {
		fmt.Printf("Model correctly initialized with %s\n", name)
	}

	dma, err := model.DMA(ctx, device, in, out, 1)
	if err != nil {
		return fmt.Errorf("estimating DMA on %v: %w", device, err)
	}
	fmt.Printf("DMA cost: %d\n", dma)

	dpu, err := model.DPU(ctx, wl)
	if err != nil {
		return fmt.Errorf("estimating DPU on %v: %w", device, err)
	}
	fmt.Printf("DPU cost: %d\n", dpu)
	return nil
}

package vpu

import (
	"sort"
	"strings"
)

// ShaveKernelFamily groups SHAVE kernels by how they touch memory.
type ShaveKernelFamily string

const (
	ShaveActivation   ShaveKernelFamily = "activation"
	ShaveElementwise  ShaveKernelFamily = "elementwise"
	ShaveDataMovement ShaveKernelFamily = "data-movement"
)

// ShaveKernel is the throughput model of a software kernel.
type ShaveKernel struct {
	Name   string
	Family ShaveKernelFamily
	// Efficiency is output bytes produced per cycle.
	Efficiency float64
	// Latency is the fixed launch cost in cycles.
	Latency int
}

var shaveKernels = map[string]ShaveKernel{}

func registerShaveKernel(name string, family ShaveKernelFamily, efficiency float64, latency int) {
	shaveKernels[strings.ToLower(name)] = ShaveKernel{Name: name, Family: family, Efficiency: efficiency, Latency: latency}
}

func init() {
	// Measured.
	registerShaveKernel("HardSigmoid", ShaveActivation, 0.547, 4956)
	registerShaveKernel("Transpose", ShaveDataMovement, 0.1, 1000)
	registerShaveKernel("Minimum", ShaveElementwise, 0.015, 11047)

	// Scaled from HardSigmoid by relative instruction count.
	registerShaveKernel("Sigmoid", ShaveActivation, 0.352, 5120)
	registerShaveKernel("Swish", ShaveActivation, 0.301, 5240)
	registerShaveKernel("HardSwish", ShaveActivation, 0.482, 5010)
	registerShaveKernel("Tanh", ShaveActivation, 0.318, 5180)
	registerShaveKernel("Relu", ShaveActivation, 0.91, 4780)
	registerShaveKernel("Elu", ShaveActivation, 0.337, 5150)
	registerShaveKernel("Gelu", ShaveActivation, 0.214, 5460)
	registerShaveKernel("Mish", ShaveActivation, 0.188, 5530)
	registerShaveKernel("SoftPlus", ShaveActivation, 0.261, 5310)
	registerShaveKernel("Exp", ShaveActivation, 0.402, 5060)
	registerShaveKernel("Log", ShaveActivation, 0.366, 5100)
	registerShaveKernel("Sqrt", ShaveActivation, 0.455, 5020)
	registerShaveKernel("Clamp", ShaveActivation, 0.83, 4800)

	// Scaled from Minimum.
	registerShaveKernel("Add", ShaveElementwise, 0.017, 10890)
	registerShaveKernel("Multiply", ShaveElementwise, 0.017, 10890)
	registerShaveKernel("Maximum", ShaveElementwise, 0.015, 11047)
	registerShaveKernel("Power", ShaveElementwise, 0.009, 11420)

	// Scaled from Transpose.
	registerShaveKernel("Concat", ShaveDataMovement, 0.21, 900)
	registerShaveKernel("Gather", ShaveDataMovement, 0.07, 1150)
	registerShaveKernel("Copy", ShaveDataMovement, 0.26, 850)
}

// LookupShaveKernel finds a kernel by case-insensitive name.
func LookupShaveKernel(name string) (ShaveKernel, bool) {
	k, ok := shaveKernels[strings.ToLower(name)]
	return k, ok
}

// ShaveKernelNames lists the catalogue in sorted order.
func ShaveKernelNames() []string {
	names := make([]string, 0, len(shaveKernels))
	for _, k := range shaveKernels {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// Package cpuspec sizes the statistics worker pool from the host's cores
// and available memory.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/mem"
)

// CPUSpec contains information about the host
type CPUSpec struct {
	BrandName       string
	LogicalCores    int
	PhysicalCores   int
	AvailableMemory uint64 // bytes, 0 when unknown
}

// GetCPUSpec probes the CPU with cpuid and memory with gopsutil
func GetCPUSpec() CPUSpec {
	spec := CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		LogicalCores:  cpuid.CPU.LogicalCores,
		PhysicalCores: cpuid.CPU.PhysicalCores,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		spec.AvailableMemory = vm.Available
	}
	return spec
}

// Workers returns the pool size for jobs that each hold about perJob bytes.
// All logical cores are used unless the decoded planes would exceed half
// of the available memory. The result is at least 1.
func (c CPUSpec) Workers(perJob uint64) int {
	// Get actual available CPU count (important for VMs and cgroup limits)
	workers := runtime.NumCPU()
	if c.LogicalCores > 0 && c.LogicalCores < workers {
		workers = c.LogicalCores
	}

	if perJob > 0 && c.AvailableMemory > 0 {
		budget := c.AvailableMemory / 2
		if byMemory := int(budget / perJob); byMemory < workers {
			workers = byMemory
		}
	}
	return max(workers, 1)
}

// PlaneBytes estimates the memory held by one decoded width x length plane
// of float32 samples plus the raw file buffer.
func PlaneBytes(width, length int) uint64 {
	if width <= 0 || length <= 0 {
		return 0
	}
	return uint64(width) * uint64(length) * (4 + 2)
}

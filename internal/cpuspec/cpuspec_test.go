package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkersBoundedByCores(t *testing.T) {
	spec := CPUSpec{LogicalCores: 2, AvailableMemory: 64 << 30}
	assert.Equal(t, min(2, runtime.NumCPU()), spec.Workers(PlaneBytes(6000, 4000)))
}

func TestWorkersBoundedByMemory(t *testing.T) {
	perJob := PlaneBytes(6000, 4000) // 144 MB
	spec := CPUSpec{LogicalCores: 64, AvailableMemory: 2 * perJob * 2}
	assert.Equal(t, min(2, runtime.NumCPU()), spec.Workers(perJob))
}

func TestWorkersAtLeastOne(t *testing.T) {
	spec := CPUSpec{LogicalCores: 8, AvailableMemory: 1 << 20}
	assert.Equal(t, 1, spec.Workers(PlaneBytes(6000, 4000)))

	assert.GreaterOrEqual(t, CPUSpec{}.Workers(0), 1)
}

func TestGetCPUSpec(t *testing.T) {
	spec := GetCPUSpec()
	assert.GreaterOrEqual(t, spec.Workers(PlaneBytes(100, 100)), 1)
}

func TestPlaneBytes(t *testing.T) {
	assert.Equal(t, uint64(600), PlaneBytes(10, 10))
	assert.Zero(t, PlaneBytes(0, 10))
}

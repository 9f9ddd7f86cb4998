package probe

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"ComputeMesh/internal/coordinator/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// Probe inspects the local host and builds a capability descriptor. It
// never fails: missing hardware degrades the descriptor, it does not error.
// A host without a GPU reports hasGPU=false.
func Probe(ctx context.Context, logger *slog.Logger) models.CapabilityDescriptor {
	if logger == nil {
		logger = slog.Default()
	}

	descriptor := models.CapabilityDescriptor{
		CPUCores: probeCPUCores(logger),
		RAMGB:    probeRAM(logger),
	}
	descriptor.StorageGB = probeStorage(logger)

	if mb, gpuType, ok := probeGPU(ctx, logger); ok {
		descriptor.HasGPU = true
		descriptor.GPUMemoryMB = mb
		descriptor.GPUType = gpuType
	}

	logger.Info("capability probe completed",
		"has_gpu", descriptor.HasGPU,
		"gpu_memory_mb", descriptor.GPUMemoryMB,
		"cpu_cores", descriptor.CPUCores,
		"ram_gb", descriptor.RAMGB,
		"storage_gb", descriptor.StorageGB,
	)

	return descriptor
}

// CurrentLoad samples aggregate CPU utilization as a 0..1 fraction for the
// heartbeat payload. Sampling failures report zero load rather than erroring.
func CurrentLoad() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0] / 100
}

func probeCPUCores(logger *slog.Logger) int {
	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		logger.Warn("cpu probe failed, falling back to runtime count", "error", err)
		cores = runtime.NumCPU()
	}
	if cores < 1 {
		cores = 1
	}
	return cores
}

func probeRAM(logger *slog.Logger) float64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil || vm.Total == 0 {
		logger.Warn("memory probe failed, assuming minimal host", "error", err)
		return 1
	}
	return float64(vm.Total) / bytesPerGB
}

func probeStorage(logger *slog.Logger) float64 {
	usage, err := disk.Usage("/")
	if err != nil || usage == nil {
		logger.Warn("disk probe failed", "error", err)
		return 0
	}
	return float64(usage.Total) / bytesPerGB
}

// probeGPU queries nvidia-smi for total VRAM and model name of GPU 0.
// Any failure (no driver, no binary, timeout) means no GPU.
func probeGPU(ctx context.Context, logger *slog.Logger) (memoryMB int, gpuType string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx,
		"nvidia-smi",
		"--query-gpu=memory.total,name",
		"--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		logger.Debug("nvidia-smi not available, assuming no GPU", "error", err)
		return 0, "", false
	}

	return parseNvidiaSMI(string(out))
}

// parseNvidiaSMI parses one line of "memory.total, name" csv output, e.g.
// "24576, NVIDIA GeForce RTX 4090".
func parseNvidiaSMI(out string) (memoryMB int, gpuType string, ok bool) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return 0, "", false
	}

	fields := strings.SplitN(lines[0], ",", 2)
	mb, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil || mb <= 0 {
		return 0, "", false
	}

	name := ""
	if len(fields) == 2 {
		name = strings.TrimSpace(fields[1])
	}

	return mb, name, true
}

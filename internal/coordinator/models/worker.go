package models

import (
	"errors"
	"fmt"
	"time"
)

type WorkerStatus string

const (
	WorkerStatusOnline   WorkerStatus = "online"
	WorkerStatusDegraded WorkerStatus = "degraded"
	WorkerStatusOffline  WorkerStatus = "offline"
)

// CapabilityDescriptor is the hardware profile a worker reports at
// registration time. It is replaced wholesale on re-registration.
type CapabilityDescriptor struct {
	HasGPU      bool    `json:"hasGPU"`
	GPUMemoryMB int     `json:"gpuMemoryMB,omitempty"`
	GPUType     string  `json:"gpuType,omitempty"`
	CPUCores    int     `json:"cpuCores"`
	RAMGB       float64 `json:"ramGB"`
	StorageGB   float64 `json:"storageGB"`
}

var (
	ErrInvalidCPUCores = errors.New("cpuCores must be at least 1")
	ErrInvalidRAM      = errors.New("ramGB must be greater than zero")
	ErrInvalidGPU      = errors.New("gpuMemoryMB must be positive when hasGPU is set")
)

func (c *CapabilityDescriptor) Validate() error {
	if c.CPUCores < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCPUCores, c.CPUCores)
	}
	if c.RAMGB <= 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidRAM, c.RAMGB)
	}
	if c.HasGPU && c.GPUMemoryMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidGPU, c.GPUMemoryMB)
	}
	return nil
}

// Normalize enforces the "gpuMemoryMB present iff hasGPU" invariant on
// descriptors that passed validation.
func (c *CapabilityDescriptor) Normalize() {
	if !c.HasGPU {
		c.GPUMemoryMB = 0
		c.GPUType = ""
	}
}

// ServiceEndpoint is one runnable service a worker exposes. Endpoints die
// with the worker.
type ServiceEndpoint struct {
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Port         int      `json:"port,omitempty"`
	HealthPath   string   `json:"healthPath,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Worker is a registered compute participant. All mutation goes through the
// registry; everything handed out of the registry is a copy.
type Worker struct {
	ID              string               `json:"workerId"`
	Capability      CapabilityDescriptor `json:"capability"`
	Tier            int                  `json:"tier"`
	AdvertiseURL    string               `json:"advertiseUrl,omitempty"`
	Services        []ServiceEndpoint    `json:"services"`
	Status          WorkerStatus         `json:"status"`
	CurrentLoad     float64              `json:"currentLoad"`
	LastHeartbeatAt time.Time            `json:"lastHeartbeatAt"`
	RegisteredAt    time.Time            `json:"registeredAt"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (w *Worker) Clone() *Worker {
	cp := *w
	cp.Services = make([]ServiceEndpoint, len(w.Services))
	copy(cp.Services, w.Services)
	for i, ep := range w.Services {
		if len(ep.Capabilities) > 0 {
			tags := make([]string, len(ep.Capabilities))
			copy(tags, ep.Capabilities)
			cp.Services[i].Capabilities = tags
		}
	}
	return &cp
}

// DeclaresService reports whether the worker explicitly exposes the named
// service. Duplicate endpoints with the same name count once.
func (w *Worker) DeclaresService(name string) bool {
	for _, ep := range w.Services {
		if ep.Name == name {
			return true
		}
	}
	return false
}

// ServiceNames returns the distinct declared service names in declaration
// order.
func (w *Worker) ServiceNames() []string {
	seen := make(map[string]struct{}, len(w.Services))
	names := make([]string, 0, len(w.Services))
	for _, ep := range w.Services {
		if _, ok := seen[ep.Name]; ok {
			continue
		}
		seen[ep.Name] = struct{}{}
		names = append(names, ep.Name)
	}
	return names
}

// IsFresh reports whether the worker heartbeated within the timeout.
func (w *Worker) IsFresh(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastHeartbeatAt) < timeout
}

package models

import "time"

// Wire types for the coordinator HTTP API. Field names follow the published
// contract, which is camelCase.

type RegisterRequest struct {
	WorkerID         string               `json:"workerId,omitempty"`
	Capability       CapabilityDescriptor `json:"capability"`
	AdvertiseURL     string               `json:"advertiseUrl,omitempty"`
	DeclaredServices []string             `json:"declaredServices"`
	Services         []ServiceEndpoint    `json:"services,omitempty"`
}

type RegisterResponse struct {
	WorkerID                 string   `json:"workerId"`
	Tier                     int      `json:"tier"`
	AssignedServices         []string `json:"assignedServices"`
	TrimmedServices          []string `json:"trimmedServices,omitempty"`
	HeartbeatIntervalSeconds int      `json:"heartbeatIntervalSeconds"`
}

type HeartbeatRequest struct {
	WorkerID    string  `json:"workerId"`
	Status      string  `json:"status,omitempty"` // "healthy" or "degraded"
	CurrentLoad float64 `json:"currentLoad,omitempty"`
}

type HeartbeatResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

type RouteResponse struct {
	EndpointURL string `json:"endpointUrl"`
	WorkerID    string `json:"workerId"`
	Tier        int    `json:"tier"`
}

type RouteUnavailableResponse struct {
	Error             string   `json:"error"`
	AvailableServices []string `json:"availableServices"`
}

type AdminWorkerView struct {
	WorkerID        string       `json:"workerId"`
	Tier            int          `json:"tier"`
	Status          WorkerStatus `json:"status"`
	Services        []string     `json:"services"`
	CurrentLoad     float64      `json:"currentLoad"`
	LastHeartbeatAt time.Time    `json:"lastHeartbeatAt"`
	RegisteredAt    time.Time    `json:"registeredAt"`
}

type AdminWorkersResponse struct {
	Workers []AdminWorkerView `json:"workers"`
	Gaps    []string          `json:"gaps"`
}

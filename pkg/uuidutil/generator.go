package uuidutil

import (
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.New().String()
}

// NewWorkerID generates a short, human-readable worker identifier.
func NewWorkerID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "worker-" + raw[:12]
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

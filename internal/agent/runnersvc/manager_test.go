//go:build unix

package runnersvc

import (
	"testing"
	"time"

	"ComputeMesh/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestStartAssignedSkipsExternalServices(t *testing.T) {
	m := NewManager([]config.AgentServiceConfig{
		{Name: "chromadb"}, // no command: managed outside the agent
	}, nil)

	m.StartAssigned([]string{"chromadb", "rag"})
	assert.False(t, m.Degraded())
	assert.Empty(t, m.FailedServices())
}

func TestStartFailureMarksDegraded(t *testing.T) {
	m := NewManager([]config.AgentServiceConfig{
		{Name: "rag", Command: "/nonexistent/binary"},
	}, nil)

	m.StartAssigned([]string{"rag"})
	assert.True(t, m.Degraded())
	assert.Equal(t, []string{"rag"}, m.FailedServices())
}

func TestCrashedProcessMarksDegraded(t *testing.T) {
	m := NewManager([]config.AgentServiceConfig{
		{Name: "rag", Command: "false"},
	}, nil)

	m.StartAssigned([]string{"rag"})
	assert.Eventually(t, m.Degraded, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"rag"}, m.FailedServices())
}

// A process that ignores SIGTERM must still be gone after the grace period.
func TestStopAllEscalatesToKill(t *testing.T) {
	m := NewManager([]config.AgentServiceConfig{
		{Name: "rag", Command: "sh", Args: []string{"-c", `trap "" TERM; sleep 60`}},
	}, nil)

	m.StartAssigned([]string{"rag"})
	assert.False(t, m.Degraded())

	start := time.Now()
	m.StopAll(300 * time.Millisecond)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, m.Degraded())
}

func TestStopAllTerminatesProcesses(t *testing.T) {
	m := NewManager([]config.AgentServiceConfig{
		{Name: "rag", Command: "sleep", Args: []string{"60"}},
	}, nil)

	m.StartAssigned([]string{"rag"})
	assert.False(t, m.Degraded())

	m.StopAll(2 * time.Second)

	// deliberate stop must not count as a failure
	assert.False(t, m.Degraded())
}

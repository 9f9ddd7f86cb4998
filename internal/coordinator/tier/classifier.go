package tier

import (
	"sort"

	"ComputeMesh/internal/coordinator/models"
)

// Tier is a capability class. Lower number means more capable hardware.
type Tier int

const (
	TierGPU     Tier = 1
	TierCPU     Tier = 2
	TierStorage Tier = 3
	TierEdge    Tier = 4
)

// Thresholds for classification, evaluated top-down.
const (
	gpuMemoryThresholdMB = 8192
	cpuTierMinRAMGB      = 4
	cpuTierMinCores      = 2
	storageTierMinRAMGB  = 2
)

// Service catalog per tier. The catalog is closed: routing keys are drawn
// from this table, not from free-form worker manifests.
var tierServices = map[Tier][]string{
	TierGPU:     {"llm", "vision-ocr", "embeddings", "gpu-worker"},
	TierCPU:     {"rag", "doc-processing", "ner", "notes-gen", "cpu-worker"},
	TierStorage: {"chromadb", "redis-cache", "postgres", "minio"},
	TierEdge:    {"edge-proxy", "relay"},
}

// eligibleSets holds the downward-compatibility union per tier: a tier-N
// worker may serve anything assignable to tiers N..3. Tier 4 stands alone,
// edge roles are placement-pinned.
var (
	eligibleSets  map[Tier]map[string]struct{}
	eligibleLists map[Tier][]string
	allServices   []string
)

func init() {
	eligibleSets = make(map[Tier]map[string]struct{})
	eligibleLists = make(map[Tier][]string)

	for t := TierGPU; t <= TierEdge; t++ {
		set := make(map[string]struct{})
		if t == TierEdge {
			for _, s := range tierServices[TierEdge] {
				set[s] = struct{}{}
			}
		} else {
			for lower := t; lower <= TierStorage; lower++ {
				for _, s := range tierServices[lower] {
					set[s] = struct{}{}
				}
			}
		}
		eligibleSets[t] = set
		eligibleLists[t] = sortedKeys(set)
	}

	seen := make(map[string]struct{})
	for _, names := range tierServices {
		for _, s := range names {
			seen[s] = struct{}{}
		}
	}
	allServices = sortedKeys(seen)
}

// Classify maps a capability descriptor to its tier and eligible service
// set. The mapping is pure: same descriptor, same answer. Descriptors that
// satisfy no threshold still land in the edge tier.
func Classify(cap models.CapabilityDescriptor) (Tier, []string) {
	t := classify(cap)
	return t, Eligible(t)
}

func classify(cap models.CapabilityDescriptor) Tier {
	switch {
	case cap.HasGPU && cap.GPUMemoryMB >= gpuMemoryThresholdMB:
		return TierGPU
	case cap.RAMGB >= cpuTierMinRAMGB && cap.CPUCores >= cpuTierMinCores:
		return TierCPU
	case cap.RAMGB >= storageTierMinRAMGB:
		return TierStorage
	default:
		return TierEdge
	}
}

// Eligible returns the sorted eligible service names for a tier.
func Eligible(t Tier) []string {
	list := eligibleLists[t]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// IsEligible reports whether a tier may serve the named service.
func IsEligible(t Tier, service string) bool {
	_, ok := eligibleSets[t][service]
	return ok
}

// Trim splits declared service names into the subset the tier may serve and
// the rejected remainder. Order of the declared slice is preserved.
func Trim(declared []string, t Tier) (kept, trimmed []string) {
	for _, name := range declared {
		if IsEligible(t, name) {
			kept = append(kept, name)
		} else {
			trimmed = append(trimmed, name)
		}
	}
	return kept, trimmed
}

// AllServices returns the full sorted service catalog.
func AllServices() []string {
	out := make([]string, len(allServices))
	copy(out, allServices)
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

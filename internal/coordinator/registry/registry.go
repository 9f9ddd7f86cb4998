package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/tier"
)

// Registry is the authoritative in-memory store of worker records. All
// mutation is serialized behind the lock; every record handed out is a copy,
// so readers always observe a consistent snapshot.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*models.Worker
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		workers: make(map[string]*models.Worker),
		logger:  logger,
	}
}

// Upsert stores or replaces a worker record wholesale and marks it online.
// Updates for the same worker are applied in receipt order: a record carrying
// a timestamp older than the stored heartbeat is ignored. Returns the stored
// record and whether an existing record was replaced.
func (r *Registry) Upsert(w *models.Worker, ts time.Time) (*models.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, replaced := r.workers[w.ID]
	if replaced {
		if ts.Before(existing.LastHeartbeatAt) {
			r.logger.Warn("ignoring stale registration",
				"worker_id", w.ID,
				"stale_timestamp", ts,
				"stored_timestamp", existing.LastHeartbeatAt,
			)
			return existing.Clone(), true
		}
		// registration time survives replacement, everything else does not
		w.RegisteredAt = existing.RegisteredAt
	} else {
		w.RegisteredAt = ts
	}

	w.Status = models.WorkerStatusOnline
	w.LastHeartbeatAt = ts
	r.workers[w.ID] = w.Clone()

	return w.Clone(), replaced
}

// Touch records a heartbeat. A timestamp older than the stored one never
// regresses lastHeartbeatAt. Returns the updated record, whether the worker
// came back from offline, and whether the worker is known at all - an
// unknown id is a benign no-op for the caller.
func (r *Registry) Touch(id string, status models.WorkerStatus, load float64, ts time.Time) (worker *models.Worker, recovered, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, false, false
	}

	if ts.Before(w.LastHeartbeatAt) {
		r.logger.Debug("dropping out-of-order heartbeat",
			"worker_id", id,
			"stale_timestamp", ts,
			"stored_timestamp", w.LastHeartbeatAt,
		)
		return w.Clone(), false, true
	}

	recovered = w.Status == models.WorkerStatusOffline
	w.LastHeartbeatAt = ts
	w.CurrentLoad = load
	if status == models.WorkerStatusDegraded {
		w.Status = models.WorkerStatusDegraded
	} else {
		w.Status = models.WorkerStatusOnline
	}

	return w.Clone(), recovered, true
}

// Get returns a copy of the worker record.
func (r *Registry) Get(id string) (*models.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// List returns copies of every record, sorted by worker id for stable
// operator output.
func (r *Registry) List() []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindByService returns every online, fresh worker that either declares the
// service or whose tier's eligible set includes it. The tier fallback is what
// lets generic gpu-worker/cpu-worker hosts absorb traffic for services nobody
// declared explicitly.
func (r *Registry) FindByService(service string, now time.Time, timeout time.Duration) []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Worker
	for _, w := range r.workers {
		if w.Status != models.WorkerStatusOnline || !w.IsFresh(now, timeout) {
			continue
		}
		if w.DeclaresService(service) || tier.IsEligible(tier.Tier(w.Tier), service) {
			out = append(out, w.Clone())
		}
	}
	return out
}

// AvailableServices returns the sorted union of services declared by healthy
// workers. This is what a caller sees alongside a "no worker available"
// answer.
func (r *Registry) AvailableServices(now time.Time, timeout time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, w := range r.workers {
		if w.Status != models.WorkerStatusOnline || !w.IsFresh(now, timeout) {
			continue
		}
		for _, name := range w.ServiceNames() {
			set[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MarkExpired transitions every worker whose heartbeat went stale to offline
// and returns their ids. Safe to call repeatedly: already-offline workers are
// skipped.
func (r *Registry) MarkExpired(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, w := range r.workers {
		if w.Status == models.WorkerStatusOffline {
			continue
		}
		if now.Sub(w.LastHeartbeatAt) > timeout {
			w.Status = models.WorkerStatusOffline
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Sweep hard-deletes offline workers whose last heartbeat is older than the
// retention window and returns their ids.
func (r *Registry) Sweep(now time.Time, retention time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, w := range r.workers {
		if w.Status != models.WorkerStatusOffline {
			continue
		}
		if now.Sub(w.LastHeartbeatAt) > retention {
			delete(r.workers, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Remove deletes a worker record outright, used by explicit unregister.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.workers[id]
	if ok {
		delete(r.workers, id)
	}
	return ok
}

// Restore loads persisted records into an empty registry at startup.
func (r *Registry) Restore(workers []*models.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range workers {
		if w == nil || w.ID == "" {
			continue
		}
		r.workers[w.ID] = w.Clone()
	}
}

// Len returns the number of known workers, online or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// CountByStatus returns worker counts per status and tier, used for gauges.
func (r *Registry) CountByStatus() map[models.WorkerStatus]map[int]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.WorkerStatus]map[int]int)
	for _, w := range r.workers {
		byTier, ok := out[w.Status]
		if !ok {
			byTier = make(map[int]int)
			out[w.Status] = byTier
		}
		byTier[w.Tier]++
	}
	return out
}

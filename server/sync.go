package main

import (
	"context"
	"sync"
	"time"

	"github.com/ifo/sanic"
	"go.uber.org/zap"

	"github.com/kward/boardshelf"
)

// syncJobTimeout bounds one whole sync, including the pending retries and
// every batched thing fetch.
const syncJobTimeout = 10 * time.Minute

type jobStatus string

const (
	jobRunning jobStatus = "running"
	jobDone    jobStatus = "done"
	jobFailed  jobStatus = "failed"
)

// syncJob is the observable state of one sync invocation.
type syncJob struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Status     jobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// maxFinishedJobs caps how many finished jobs stay queryable. The oldest
// finished jobs are evicted beyond the cap so the job table cannot grow
// without bound on a long-running server.
const maxFinishedJobs = 128

// userLock serializes syncs for one username. refs counts jobs holding
// or waiting on it, so the entry can be dropped once the last one ends.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// syncManager runs each sync on its own goroutine so the pending-export
// sleeps never block request handling, and serializes syncs per username
// so two concurrent requests for the same name cannot race on user and
// ownership rows.
type syncManager struct {
	engine    *boardshelf.Engine
	timeout   time.Duration
	retention int

	mu       sync.Mutex
	worker   *sanic.Worker
	jobs     map[string]*syncJob
	finished []string
	locks    map[string]*userLock
}

func newSyncManager(engine *boardshelf.Engine) *syncManager {
	return &syncManager{
		engine:    engine,
		timeout:   syncJobTimeout,
		retention: maxFinishedJobs,
		worker:    sanic.NewWorker7(),
		jobs:      make(map[string]*syncJob),
		locks:     make(map[string]*userLock),
	}
}

// Start registers a job and kicks off the sync goroutine. The returned
// snapshot is safe to render.
func (m *syncManager) Start(username string) syncJob {
	m.mu.Lock()
	id := m.worker.IDString(m.worker.NextID())
	job := &syncJob{
		ID:        id,
		Username:  username,
		Status:    jobRunning,
		StartedAt: time.Now(),
	}
	m.jobs[id] = job

	lock := m.locks[username]
	if lock == nil {
		lock = &userLock{}
		m.locks[username] = lock
	}
	lock.refs++
	snapshot := *job
	m.mu.Unlock()

	syncsRunning.Inc()
	go m.run(job, lock)

	return snapshot
}

// Get returns a snapshot of a job.
func (m *syncManager) Get(id string) (syncJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return syncJob{}, false
	}
	return *job, true
}

func (m *syncManager) run(job *syncJob, lock *userLock) {
	defer syncsRunning.Dec()

	lock.mu.Lock()
	defer lock.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	// The mode is decided under the per-username lock: a queued second
	// sync for a brand-new name must see the user row the first one
	// created.
	existing, err := m.engine.UserExists(ctx, job.Username)
	if err == nil {
		err = m.engine.SyncCollection(ctx, job.Username, existing)
	}

	syncsTotal.WithLabelValues(syncResultLabel(err)).Inc()

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	job.FinishedAt = &now
	if err != nil {
		job.Status = jobFailed
		job.Error = err.Error()
		log.Errorw("sync failed", "username", job.Username, "job", job.ID, zap.Error(err))
	} else {
		job.Status = jobDone
	}

	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, job.Username)
	}

	m.finished = append(m.finished, job.ID)
	for len(m.finished) > m.retention {
		delete(m.jobs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

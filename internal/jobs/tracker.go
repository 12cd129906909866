package jobs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Tracker owns every job. A single mutex orders all operations, so log
// appends land in issue order. Operations on unknown ids are no-ops.
type Tracker struct {
	mu     sync.Mutex
	clock  Clock
	log    zerolog.Logger
	order  []string
	jobs   map[string]*Job
	timers map[string]Timer
	subs   map[string][]chan struct{}
}

// NewTracker returns an empty tracker. A nil clock means RealClock.
func NewTracker(clock Clock, logger zerolog.Logger) *Tracker {
	if clock == nil {
		clock = RealClock
	}
	return &Tracker{
		clock:  clock,
		log:    logger,
		jobs:   make(map[string]*Job),
		timers: make(map[string]Timer),
		subs:   make(map[string][]chan struct{}),
	}
}

// Create stores job. An existing job with the same id is replaced.
func (t *Tracker) Create(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = t.clock.Now()
	}
	if job.Status == "" {
		job.Status = StatusPreparing
	}
	stored := job.Clone()
	if _, exists := t.jobs[job.ID]; !exists {
		t.order = append(t.order, job.ID)
	}
	t.jobs[job.ID] = &stored
	t.notifyLocked(job.ID)
}

// AppendLog adds a timestamped line to the job's log.
func (t *Tracker) AppendLog(id, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return
	}
	j.Logs = append(j.Logs, LogEntry{Time: t.clock.Now(), Message: message})
	t.notifyLocked(id)
}

// Update applies p. A progress value below the current one is ignored
// unless the same patch moves the job to StatusError. Terminal jobs keep
// their status.
func (t *Tracker) Update(id string, p Patch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return
	}
	toError := p.Status != nil && *p.Status == StatusError && !j.Status.Terminal()
	if p.Status != nil && !j.Status.Terminal() {
		j.Status = *p.Status
		if j.Status.Terminal() {
			j.FinishedAt = t.clock.Now()
		}
	}
	if p.Progress != nil {
		next := min(max(*p.Progress, 0), 100)
		if next >= j.Progress || toError {
			j.Progress = next
		} else {
			t.log.Debug().Str("job_id", id).Int("progress", j.Progress).Int("ignored", next).Msg("progress regression ignored")
		}
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.ErrorKind != nil {
		j.ErrorKind = *p.ErrorKind
	}
	if p.OutputPath != nil {
		j.OutputPath = *p.OutputPath
	}
	t.notifyLocked(id)
}

// Remove deletes the job and cancels any pending removal.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id)
}

// ScheduleRemoval removes the job after d, replacing an earlier schedule.
func (t *Tracker) ScheduleRemoval(id string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[id]; !ok {
		return
	}
	if prev, ok := t.timers[id]; ok {
		prev.Stop()
	}
	var timer Timer
	timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.timers[id] != timer {
			return
		}
		t.log.Debug().Str("job_id", id).Msg("job removed")
		t.removeLocked(id)
	})
	t.timers[id] = timer
}

// Get returns a copy of the job.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.Clone(), true
}

// List returns copies of every job in creation order.
func (t *Tracker) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Job, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.jobs[id].Clone())
	}
	return out
}

// Subscribe returns a channel that receives a value after each change to
// the job, and a function that releases it. The channel is closed when the
// job is removed.
func (t *Tracker) Subscribe(id string) (<-chan struct{}, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{}, 1)
	if _, ok := t.jobs[id]; !ok {
		close(ch)
		return ch, func() {}
	}
	t.subs[id] = append(t.subs[id], ch)
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		subs := t.subs[id]
		for i, c := range subs {
			if c == ch {
				t.subs[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

func (t *Tracker) notifyLocked(id string) {
	for _, ch := range t.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (t *Tracker) removeLocked(id string) {
	if _, ok := t.jobs[id]; !ok {
		return
	}
	delete(t.jobs, id)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	for _, ch := range t.subs[id] {
		close(ch)
	}
	delete(t.subs, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

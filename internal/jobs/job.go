package jobs

import (
	"strings"
	"sync"
	"time"
)

// State represents the lifecycle of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

var allStates = []State{StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled}

// AllStates returns every job state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a string into a State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStates {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job is pending or running.
func (s State) IsActive() bool {
	return s == StatePending || s == StateRunning
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateCancelled
	case StateRunning:
		return to == StateCompleted || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

// Quality is the requested video quality tier.
type Quality string

const (
	Quality480  Quality = "480"
	Quality720  Quality = "720"
	Quality1080 Quality = "1080"
	QualityBest Quality = "best"
)

// ParseQuality maps user input to a quality tier. Unrecognized values map to
// QualityBest. A trailing "p" is accepted ("720p").
func ParseQuality(value string) Quality {
	normalized := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "p")
	switch Quality(normalized) {
	case Quality480, Quality720, Quality1080:
		return Quality(normalized)
	default:
		return QualityBest
	}
}

// Options is the immutable configuration captured at submission.
type Options struct {
	Quality   Quality `json:"quality"`
	AudioOnly bool    `json:"audio_only"`
	// Proxy is the proxy endpoint; empty disables the proxy.
	Proxy     string `json:"proxy,omitempty"`
	OutputDir string `json:"output_dir"`
	Verbose   bool   `json:"verbose,omitempty"`
}

// Snapshot is a consistent copy of a job record.
type Snapshot struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Options         Options   `json:"options"`
	State           State     `json:"state"`
	Progress        float64   `json:"progress"`
	Indeterminate   bool      `json:"indeterminate,omitempty"`
	StatusMessage   string    `json:"status_message"`
	Error           string    `json:"error,omitempty"`
	ErrorCode       string    `json:"error_code,omitempty"`
	OutputPath      string    `json:"output_path,omitempty"`
	Title           string    `json:"title,omitempty"`
	Collection      bool      `json:"collection,omitempty"`
	ItemIndex       int       `json:"item_index,omitempty"`
	ItemCount       int       `json:"item_count,omitempty"`
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	// Version increases on every mutation of the record.
	Version uint64 `json:"version"`
}

// Duration reports how long the job has been (or was) running.
func (s Snapshot) Duration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(s.StartedAt)
}

// record holds the mutable fields of a job. It is only touched with job.mu held.
type record struct {
	state           State
	progress        float64
	indeterminate   bool
	statusMessage   string
	err             string
	errCode         string
	outputPath      string
	title           string
	collection      bool
	itemIndex       int
	itemCount       int
	cancelRequested bool
	startedAt       time.Time
	finishedAt      time.Time
	version         uint64
}

type job struct {
	id        string
	source    string
	options   Options
	createdAt time.Time

	mu          sync.Mutex
	rec         record
	cancelFetch func()
	cancelOnce  sync.Once
	cancelCh    chan struct{}
	done        chan struct{}
}

func newJob(id, source string, opts Options, now time.Time) *job {
	return &job{
		id:        id,
		source:    source,
		options:   opts,
		createdAt: now,
		rec: record{
			state:         StatePending,
			statusMessage: messageQueued,
			version:       1,
		},
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// transitionLocked applies a state change if the state machine allows it.
func (j *job) transitionLocked(to State, now time.Time) bool {
	if !isValidTransition(j.rec.state, to) {
		return false
	}
	j.rec.state = to
	switch {
	case to == StateRunning:
		j.rec.startedAt = now
	case to.IsTerminal():
		j.rec.finishedAt = now
	}
	j.rec.version++
	return true
}

func (j *job) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              j.id,
		Source:          j.source,
		Options:         j.options,
		State:           j.rec.state,
		Progress:        j.rec.progress,
		Indeterminate:   j.rec.indeterminate,
		StatusMessage:   j.rec.statusMessage,
		Error:           j.rec.err,
		ErrorCode:       j.rec.errCode,
		OutputPath:      j.rec.outputPath,
		Title:           j.rec.title,
		Collection:      j.rec.collection,
		ItemIndex:       j.rec.itemIndex,
		ItemCount:       j.rec.itemCount,
		CancelRequested: j.rec.cancelRequested,
		CreatedAt:       j.createdAt,
		StartedAt:       j.rec.startedAt,
		FinishedAt:      j.rec.finishedAt,
		Version:         j.rec.version,
	}
}

func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *job) signalCancel() {
	j.cancelOnce.Do(func() { close(j.cancelCh) })
}

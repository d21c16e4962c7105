package server

import (
	"fmt"
	"sync"

	"github.com/v-graph/vgraph/internal/analysis"
)

const (
	analysisTaskPrefix          = "task-"
	analysisTaskStatusRunning   = analysisTaskStatus("running")
	analysisTaskStatusCompleted = analysisTaskStatus("completed")
	analysisTaskStatusFailed    = analysisTaskStatus("failed")
	analysisTaskNotFoundMessage = "analysis task not found"

	// maxFinishedTaskHistory bounds how many finished tasks the tracker
	// retains; each completed task holds a full analysis result.
	maxFinishedTaskHistory = 128
)

// analysisTaskStatus represents the lifecycle state of an analysis task.
type analysisTaskStatus string

// analysisTask captures the state of one running or finished analysis.
type analysisTask struct {
	identifier string
	network    string
	status     analysisTaskStatus
	errors     []string
	result     *analysis.Result
}

// analysisTaskSnapshot copies the public portions of a task for serialization.
type analysisTaskSnapshot struct {
	Identifier string   `json:"id"`
	Network    string   `json:"network"`
	Status     string   `json:"status"`
	Errors     []string `json:"errors,omitempty"`
}

// analysisTaskTracker tracks active and completed analysis tasks. Running
// tasks are always retained; finished tasks are evicted oldest-first once
// their number exceeds maxFinishedTaskHistory.
type analysisTaskTracker struct {
	mutex               sync.Mutex
	tasks               map[string]*analysisTask
	finishedIdentifiers []string
	nextSequence        int
}

// newAnalysisTaskTracker constructs a tracker with empty state.
func newAnalysisTaskTracker() *analysisTaskTracker {
	return &analysisTaskTracker{tasks: make(map[string]*analysisTask)}
}

// CreateTask registers a new analysis task and returns its snapshot.
func (tracker *analysisTaskTracker) CreateTask(network string) analysisTaskSnapshot {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	tracker.nextSequence++
	identifier := fmt.Sprintf("%s%d", analysisTaskPrefix, tracker.nextSequence)
	task := &analysisTask{
		identifier: identifier,
		network:    network,
		status:     analysisTaskStatusRunning,
	}
	tracker.tasks[identifier] = task
	return tracker.snapshotTask(task)
}

// CompleteTask records a finished analysis together with its accumulated
// batch-level errors.
func (tracker *analysisTaskTracker) CompleteTask(taskIdentifier string, result *analysis.Result) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists {
		return
	}
	task.status = analysisTaskStatusCompleted
	task.result = result
	task.errors = append([]string(nil), result.Errors...)
	tracker.recordFinishedLocked(taskIdentifier)
}

// FailTask transitions a task to the failed status with its terminal error.
func (tracker *analysisTaskTracker) FailTask(taskIdentifier string, message string) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists {
		return
	}
	task.status = analysisTaskStatusFailed
	task.errors = append(task.errors, message)
	tracker.recordFinishedLocked(taskIdentifier)
}

// recordFinishedLocked appends a finished task to the eviction queue and
// drops the oldest finished tasks beyond the retention cap. Callers hold
// the tracker mutex.
func (tracker *analysisTaskTracker) recordFinishedLocked(taskIdentifier string) {
	tracker.finishedIdentifiers = append(tracker.finishedIdentifiers, taskIdentifier)
	for len(tracker.finishedIdentifiers) > maxFinishedTaskHistory {
		evictedIdentifier := tracker.finishedIdentifiers[0]
		tracker.finishedIdentifiers = tracker.finishedIdentifiers[1:]
		delete(tracker.tasks, evictedIdentifier)
	}
}

// TaskSnapshot returns a copy of the task state for external observers.
func (tracker *analysisTaskTracker) TaskSnapshot(taskIdentifier string) (analysisTaskSnapshot, bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists {
		return analysisTaskSnapshot{}, false
	}
	return tracker.snapshotTask(task), true
}

// TaskResult returns the finished analysis result for a completed task.
func (tracker *analysisTaskTracker) TaskResult(taskIdentifier string) (*analysis.Result, bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists || task.status != analysisTaskStatusCompleted {
		return nil, false
	}
	return task.result, true
}

func (tracker *analysisTaskTracker) snapshotTask(task *analysisTask) analysisTaskSnapshot {
	return analysisTaskSnapshot{
		Identifier: task.identifier,
		Network:    task.network,
		Status:     string(task.status),
		Errors:     append([]string(nil), task.errors...),
	}
}

package coordinator

import "time"

// Notifier receives sync lifecycle notifications. Implementations persist
// them to the event journal, mirror them to NATS, or both. Jobs are passed
// by value so observers never share mutable state with the workers.
type Notifier interface {
	JobQueued(job Job)
	JobStarted(job Job)
	JobStageCompleted(job Job, stage Stage, d time.Duration)
	JobCompleted(job Job)
	EnrollmentSuspended(owner, name, reason string)
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) JobQueued(Job)                            {}
func (NoopNotifier) JobStarted(Job)                           {}
func (NoopNotifier) JobStageCompleted(Job, Stage, time.Duration) {}
func (NoopNotifier) JobCompleted(Job)                         {}
func (NoopNotifier) EnrollmentSuspended(string, string, string) {}

// MultiNotifier fans notifications out to several observers.
type MultiNotifier []Notifier

func (m MultiNotifier) JobQueued(job Job) {
	for _, n := range m {
		n.JobQueued(job)
	}
}

func (m MultiNotifier) JobStarted(job Job) {
	for _, n := range m {
		n.JobStarted(job)
	}
}

func (m MultiNotifier) JobStageCompleted(job Job, stage Stage, d time.Duration) {
	for _, n := range m {
		n.JobStageCompleted(job, stage, d)
	}
}

func (m MultiNotifier) JobCompleted(job Job) {
	for _, n := range m {
		n.JobCompleted(job)
	}
}

func (m MultiNotifier) EnrollmentSuspended(owner, name, reason string) {
	for _, n := range m {
		n.EnrollmentSuspended(owner, name, reason)
	}
}

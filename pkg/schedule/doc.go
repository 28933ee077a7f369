// Package schedule runs named recurring jobs on interval or daily
// schedules.
//
// It is the explicit scheduler boundary for background reconciliation: the
// run time is injected into each job, so the job logic is testable with
// fixed times, and a failed or panicking run only logs and waits for the
// next tick. Jobs can also be triggered out of schedule via RunJobNow for
// operational use.
package schedule

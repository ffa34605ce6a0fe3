// Package scheduler runs named fire-and-forget background tasks.
//
// Runner is the module's standard implementation of the connection-health
// tracker's TaskScheduler collaborator: each task gets its own goroutine
// and a context that is cancelled on shutdown, and Stop waits for in-flight
// tasks with a deadline. Task panics are recovered and logged so one bad
// task cannot take the process down.
package scheduler

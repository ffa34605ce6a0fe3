package health

import "context"

// TaskScheduler runs fire-and-forget background work for the tracker: the
// delayed unknown-pong retry and asynchronous event publication. A nil
// scheduler is tolerated; scheduling is then skipped, not fatal.
//
// Implement this interface in the surrounding application, or use
// scheduler.Runner from this module.
type TaskScheduler interface {
	// CreateTask schedules fn to run on its own goroutine. The context is
	// cancelled when the scheduler shuts down. name identifies the task for
	// diagnostics.
	CreateTask(name string, fn func(ctx context.Context))
}

// ConnectionState reports known backend outages. When an interface has a
// known RPC proxy issue (for example during a backend restart), ping
// tracking is suppressed entirely so the outage does not masquerade as a
// ping/pong mismatch. A nil ConnectionState means no known issues.
type ConnectionState interface {
	// HasRPCProxyIssue reports whether the given interface is known to be
	// unreachable.
	HasRPCProxyIssue(interfaceID string) bool
}

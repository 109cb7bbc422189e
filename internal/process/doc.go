// Package process runs short-lived side effects off the control loop.
//
// A Pool is a bounded, supervised set of goroutines built on errgroup.
// Submitting never blocks: when every worker is busy the job is refused and
// logged. Shell runs one-shot shell commands through the pool and captures
// their output into the log.
//
// Example usage:
//
//	pool := process.NewPool(ctx, 8, logger)
//	defer pool.Close()
//
//	shell := process.NewShell(pool, 30*time.Second, logger)
//	shell.Run("/usr/local/bin/notify gate on")
package process

// Package worker runs pipeline tasks on a bounded pool and retains their
// records for polling clients. The pool satisfies tasks.Queue so running
// tasks can enqueue follow-on work.
package worker

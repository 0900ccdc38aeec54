// Package tasks implements the pipeline's units of work: metadata extraction
// for a submitted URL and the per-item downloads it fans out into. Tasks are
// plain values executed by the worker pool; every collaborator they touch is
// injected through Env.
package tasks

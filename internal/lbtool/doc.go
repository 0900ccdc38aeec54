// Package lbtool wraps the external media-fetch tool as a line-oriented
// subprocess: metadata extraction (tubeadd), downloads (dl), and title
// search. Handles expose non-blocking line reads and exit polling so callers
// can interleave progress parsing with stall detection and cancellation.
//
// No retries happen at this layer; retry policy belongs to the tasks.
package lbtool

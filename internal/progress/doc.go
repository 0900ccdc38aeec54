// Package progress estimates download completion by scraping the external
// tool's line output. The parsing rules are a versioned contract against one
// specific tool release; task orchestration only sees the Monitor interface
// so the strategy can be swapped without touching the tasks.
package progress

// Package cron provides in-process recurring job scheduling.
//
// Entries pair a cron expression with a job kind; on each tick the
// scheduler enqueues a job for every due entry and advances its next
// run time. Expressions use the standard 5-field syntax plus
// descriptors like "@every 30s" and "@hourly".
//
// The scheduler holds its entries in memory: a restart re-registers
// them from code, and the dedupe-key machinery on the job side keeps
// re-registration from duplicating scheduled work. Typical entries are
// maintenance sweeps — re-triggering conversation persistence for
// conversations with a lingering backup, and purging old entries from
// the failure archive.
package cron

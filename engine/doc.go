// Package engine wires all conveyor subsystems together. It creates
// the extension registry, job registry, middleware chain, worker pool,
// failure archive service, and cron scheduler, and provides the
// Register/Enqueue/Cancel operations producers use.
//
// This package exists to break the import cycle: the root conveyor
// package defines Entity and the sentinel errors (imported by job,
// failure, etc.) and so cannot import those packages back. The engine
// package sits above all subsystem packages and below the application
// layer.
package engine

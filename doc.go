// Package conveyor is the asynchronous job pipeline behind the TransSeas
// procurement platform. It provides typed background jobs with bounded
// concurrency, retries with pluggable backoff, a terminal-failure archive,
// and the crash-safe pipeline that migrates the ephemeral chat message log
// from Redis into Postgres.
//
// Conveyor is a library, not a service. Construct a Dispatcher, wire it
// through the engine package, and register jobs as ordinary Go functions:
//
//	d, err := conveyor.New(
//	    conveyor.WithStore(redisStore),
//	    conveyor.WithQueues([]string{mail.Queue, chat.Queue}),
//	)
//
// # Architecture
//
// Each subsystem lives in its own package: job (records, typed
// definitions, store contract), worker (executor and pool), backoff
// (retry delay strategies), failure (terminal-failure archive), queue
// (per-queue concurrency and rate limits), ext (lifecycle hooks), cron
// (periodic sweeps), and engine (wiring). Domain handlers live in mail
// and chat. A single backend implements the store contracts; Redis backs
// the queues and the ephemeral chat log, Bun/Postgres backs the durable
// side.
//
// Nothing is instantiated at import time. Process lifecycle is explicit:
// engine.Build wires the pieces, Dispatcher.Start launches the worker
// pool, Dispatcher.Stop drains it.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package conveyor

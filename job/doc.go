// Package job defines the job entity, state machine, typed definitions,
// and store interface.
//
// # Job Entity
//
// A [Job] represents a unit of deferred work. It embeds
// [conveyor.Entity] for timestamps, carries a kind-specific JSON
// payload, and progresses through a state machine:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed
//	pending → cancelled
//
// Fields of note:
//   - Kind: discriminator that selects the registered handler
//   - Queue: which queue the job belongs to (default: "default")
//   - DedupeKey: makes enqueue idempotent per key and enables
//     cancellation of waiting jobs
//   - MaxAttempts / Attempts: total execution budget
//   - RunAt: earliest time the job may be dequeued
//   - Timeout: per-attempt execution deadline (zero = unlimited)
//
// Terminal jobs (StateFailed) are retained for inspection, not purged;
// the failure package keeps the archive.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs:
//
//	var SendInvite = job.NewDefinition("invite-user",
//	    func(ctx context.Context, p InvitePayload) error {
//	        return mailer.Send(ctx, composeInvite(p))
//	    },
//	    job.WithQueue(mail.Queue),
//	)
//
// # Registry
//
// [Registry] maps job kinds to type-erased [HandlerFunc] values and
// remembers each kind's default options. Register definitions at
// startup via [RegisterDefinition]; the engine package provides
// higher-level engine.Register and engine.Enqueue wrappers.
package job

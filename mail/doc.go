// Package mail implements the email job handlers of the procurement
// backend: OTP delivery, password resets, user invitations, RFQ
// distribution with generated attachments, and the delayed follow-up
// reminder sequence.
//
// Handlers are pure per-kind functions registered on a job.Registry and
// executed by the worker pool. Producer helpers enqueue the jobs with
// the right dedupe keys and delays.
package mail

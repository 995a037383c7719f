package redis

// Redis key naming conventions for conveyor data.
// All keys are prefixed with "conveyor:" to avoid collisions. The chat
// message logs are the exception: their layout is owned by the chat
// producers and passed in verbatim as ranked-log keys.

const keyPrefix = "conveyor:"

// ── Job keys ──

// jobKey returns the key for a job entity: conveyor:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// queueKey returns the Sorted Set key for a queue, scored by run time:
// conveyor:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// dedupeKey returns the key mapping a dedupe key to the waiting job
// holding it: conveyor:dedupe:{key}
func dedupeKey(key string) string { return keyPrefix + "dedupe:" + key }

// ── Failure archive keys ──

// failureKey returns the key for an archive entry: conveyor:failure:{id}
func failureKey(id string) string { return keyPrefix + "failure:" + id }

// failureIDsKey is the Set tracking all archive entry IDs for enumeration.
const failureIDsKey = keyPrefix + "failure_ids"

package chat

// Cache key layout for conversation message logs. The backup key is
// derived from the live key so a single conversation id addresses both.
const (
	liveKeyPrefix   = "chat:messages:"
	backupKeyPrefix = "chat:messages:backup:"
)

// LiveKey returns the cache key of the live ranked log for a conversation.
func LiveKey(conversationID string) string {
	return liveKeyPrefix + conversationID
}

// BackupKey returns the cache key of the staging backup log for a
// conversation. Its existence means a migration is in progress or was
// interrupted.
func BackupKey(conversationID string) string {
	return backupKeyPrefix + conversationID
}

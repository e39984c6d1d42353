package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Dead letter lists live next to their source queue as dlq:<queue>. Nothing
// consumes them; operators inspect and replay by hand.
const (
	DLQPrefix = "dlq:"
	dlqMaxLen = 1000
)

// DLQEntry is one parked job. Raw is set instead of Payload when the
// envelope itself could not be decoded.
type DLQEntry struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// deadLetter parks an entry and trims the list so a poison producer cannot
// grow it without bound. Failures here are logged only.
func deadLetter(ctx context.Context, rdb *redis.Client, entry DLQEntry) {
	entry.FailedAt = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", entry.Queue).Msg("dlq entry not encodable")
		return
	}

	key := DLQPrefix + entry.Queue
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, dlqMaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("dlq", key).Msg("dlq push failed")
		return
	}

	log.Warn().
		Str("queue", entry.Queue).
		Str("job_type", entry.JobType).
		Int("attempts", entry.Attempts).
		Str("reason", entry.Reason).
		Msg("job dead-lettered")
}

// DLQLength returns how many entries are parked for queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// DLQDepths reports every dead letter list for the health endpoint; -1 marks
// a list that could not be read.
func DLQDepths(ctx context.Context, rdb *redis.Client) map[string]int64 {
	queues := []string{QueueReceipts, QueueStockAlerts}
	pipe := rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, DLQPrefix+q)
	}
	_, _ = pipe.Exec(ctx)

	out := make(map[string]int64, len(queues))
	for i, q := range queues {
		n, err := cmds[i].Result()
		if err != nil {
			n = -1
		}
		out[q] = n
	}
	return out
}

// PeekDLQ returns up to limit entries, newest first, leaving them in place.
// Entries that no longer decode are skipped.
func PeekDLQ(ctx context.Context, rdb *redis.Client, queue string, limit int64) ([]DLQEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := rdb.LRange(ctx, DLQPrefix+queue, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if json.Unmarshal([]byte(r), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/briefdesk/briefdesk/pkg/models"
)

const (
	historyKeyPrefix    = "briefdesk:history:"
	checkpointKeyPrefix = "briefdesk:checkpoint:"
	auditKeyPrefix      = "briefdesk:audit:"
	pendingSetKey       = "briefdesk:checkpoints:pending"
)

// RedisStore is the production Store driver. Histories are Redis lists
// (RPUSH preserves arrival order), checkpoints are JSON values resolved
// under an optimistic WATCH transaction, and a pending set tracks
// checkpoints the janitor still has to expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl bounds how long idle
// thread state is retained; zero or negative means 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func historyKey(threadID string) string    { return historyKeyPrefix + threadID }
func checkpointKey(threadID string) string { return checkpointKeyPrefix + threadID }
func auditKey(threadID string) string      { return auditKeyPrefix + threadID }

// AppendMessages implements Store.
func (s *RedisStore) AppendMessages(ctx context.Context, threadID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		vals = append(vals, b)
	}
	key := historyKey(threadID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, threadID string) ([]models.Message, error) {
	raw, err := s.client.LRange(ctx, historyKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ClearHistory implements Store.
func (s *RedisStore) ClearHistory(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, historyKey(threadID)).Err()
}

// SaveCheckpoint implements Store.
func (s *RedisStore) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, checkpointKey(cp.ThreadID), b, s.ttl)
	pipe.SAdd(ctx, pendingSetKey, cp.ThreadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint implements Store.
func (s *RedisStore) GetCheckpoint(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	val, err := s.client.Get(ctx, checkpointKey(threadID)).Result()
	if err == redis.Nil {
		return nil, &ErrNotFound{Entity: "checkpoint", Key: threadID}
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp models.Checkpoint
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// ResolveCheckpoint implements Store. Optimistic locking via WATCH: if a
// concurrent resume modifies the key between read and write, the
// transaction aborts and the loser retries, observing the winner's
// resolution on the next pass.
func (s *RedisStore) ResolveCheckpoint(ctx context.Context, threadID string, decision models.Decision, resolvedBy string) (*models.Checkpoint, error) {
	key := checkpointKey(threadID)
	var resolved *models.Checkpoint

	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return &ErrNotFound{Entity: "checkpoint", Key: threadID}
		}
		if err != nil {
			return fmt.Errorf("read checkpoint: %w", err)
		}
		var cp models.Checkpoint
		if err := json.Unmarshal([]byte(val), &cp); err != nil {
			return fmt.Errorf("decode checkpoint: %w", err)
		}
		if cp.Status != models.CheckpointPending {
			return ErrAlreadyResolved
		}
		now := time.Now().UTC()
		if cp.Expired(now) {
			cp.Status = models.CheckpointExpired
			cp.ResolvedAt = &now
			if err := s.writeResolved(ctx, tx, key, threadID, &cp); err != nil {
				return err
			}
			return ErrExpired
		}

		if decision == models.DecisionApprove {
			cp.Status = models.CheckpointApproved
		} else {
			cp.Status = models.CheckpointRejected
		}
		cp.ResolvedAt = &now
		cp.ResolvedBy = resolvedBy
		if err := s.writeResolved(ctx, tx, key, threadID, &cp); err != nil {
			return err
		}
		resolved = &cp
		return nil
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue // lost the race, re-read and re-validate
		}
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}
	return nil, fmt.Errorf("resolve checkpoint %s: too many conflicting writes", threadID)
}

func (s *RedisStore) writeResolved(ctx context.Context, tx *redis.Tx, key, threadID string, cp *models.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, redis.KeepTTL)
		pipe.SRem(ctx, pendingSetKey, threadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// ExpireCheckpoints implements Store.
func (s *RedisStore) ExpireCheckpoints(ctx context.Context, now time.Time) (int, error) {
	threadIDs, err := s.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list pending checkpoints: %w", err)
	}

	expired := 0
	for _, threadID := range threadIDs {
		n, err := s.expireOne(ctx, threadID, now)
		if err != nil {
			return expired, fmt.Errorf("expire checkpoint %s: %w", threadID, err)
		}
		expired += n
	}
	return expired, nil
}

// expireOne stamps one overdue checkpoint expired under the same optimistic
// WATCH transaction ResolveCheckpoint uses. The pending check is re-done
// inside the transaction, so a resume that resolves the checkpoint between
// the janitor's read and write aborts the janitor's write instead of being
// overwritten.
func (s *RedisStore) expireOne(ctx context.Context, threadID string, now time.Time) (int, error) {
	key := checkpointKey(threadID)
	expired := 0

	txn := func(tx *redis.Tx) error {
		expired = 0
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			// Key aged out via TTL; drop the set entry.
			s.client.SRem(ctx, pendingSetKey, threadID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read checkpoint: %w", err)
		}
		var cp models.Checkpoint
		if err := json.Unmarshal([]byte(val), &cp); err != nil {
			return fmt.Errorf("decode checkpoint: %w", err)
		}
		if cp.Status != models.CheckpointPending {
			// Resolved while still in the pending set; tidy the set only.
			s.client.SRem(ctx, pendingSetKey, threadID)
			return nil
		}
		if !cp.Expired(now) {
			return nil
		}
		resolvedAt := now
		cp.Status = models.CheckpointExpired
		cp.ResolvedAt = &resolvedAt
		if err := s.writeResolved(ctx, tx, key, threadID, &cp); err != nil {
			return err
		}
		expired = 1
		return nil
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue // a resume touched the key, re-read and re-validate
		}
		if err != nil {
			return 0, err
		}
		return expired, nil
	}
	// Lost every round to concurrent resolves; there is nothing left to
	// expire for this thread.
	return 0, nil
}

// AppendAudit implements Store.
func (s *RedisStore) AppendAudit(ctx context.Context, event *models.AuditEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := auditKey(event.ThreadID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit implements Store.
func (s *RedisStore) ListAudit(ctx context.Context, threadID string) ([]models.AuditEvent, error) {
	raw, err := s.client.LRange(ctx, auditKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	events := make([]models.AuditEvent, 0, len(raw))
	for _, r := range raw {
		var ev models.AuditEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

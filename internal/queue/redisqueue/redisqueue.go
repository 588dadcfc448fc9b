// Package redisqueue implements queue.Queue on Redis. Each job is a hash; a
// sorted set orders jobs by the instant they next become claimable, which is
// the fire time for pending jobs and the lease deadline for running ones.
//
// The scripts address job hashes they derive from the prefix, so the queue
// expects a single Redis node rather than a cluster.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/podcheck/internal/constants"
	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
)

var statuses = []models.JobStatus{models.JobPending, models.JobRunning, models.JobDone, models.JobFailed}

var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'kind', ARGV[2], 'goal_id', ARGV[3], 'date', ARGV[4], 'fire_at', ARGV[5],
  'status', 'pending', 'attempts', 0, 'lease_until', 0, 'last_error', '',
  'created_at', ARGV[6], 'updated_at', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

var claimScript = redis.NewScript(`
local members = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[3])
local claimed = {}
for _, m in ipairs(members) do
  local h = ARGV[4] .. ':job:' .. m
  local status = redis.call('HGET', h, 'status')
  if status == 'pending' or status == 'running' then
    redis.call('HSET', h, 'status', 'running', 'lease_until', ARGV[2], 'updated_at', ARGV[1])
    redis.call('HINCRBY', h, 'attempts', 1)
    redis.call('ZADD', KEYS[1], ARGV[2], m)
    redis.call('SREM', ARGV[4] .. ':status:pending', m)
    redis.call('SADD', ARGV[4] .. ':status:running', m)
    table.insert(claimed, m)
  else
    redis.call('ZREM', KEYS[1], m)
  end
end
return claimed
`)

var transitionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'lease_until', ARGV[3], 'last_error', ARGV[4], 'updated_at', ARGV[5])
for _, s in ipairs({'pending', 'running', 'done', 'failed'}) do
  redis.call('SREM', ARGV[6] .. ':status:' .. s, ARGV[1])
end
redis.call('SADD', ARGV[6] .. ':status:' .. ARGV[2], ARGV[1])
if ARGV[2] == 'pending' then
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
else
  redis.call('ZREM', KEYS[2], ARGV[1])
end
if ARGV[2] == 'done' then
  redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
end
return 1
`)

type Queue struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*Queue)

func WithPrefix(prefix string) Option {
	return func(q *Queue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(client redis.UniversalClient, opts ...Option) *Queue {
	q := &Queue{client: client, prefix: constants.DefaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string, opts ...Option) (*Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return New(client, opts...), nil
}

func (q *Queue) jobKey(member string) string { return q.prefix + ":job:" + member }

func (q *Queue) dueKey() string { return q.prefix + ":due" }

func (q *Queue) doneKey() string { return q.prefix + ":done" }

func (q *Queue) statusKey(s models.JobStatus) string { return q.prefix + ":status:" + string(s) }

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (q *Queue) Enqueue(ctx context.Context, job models.ScheduledJob) (bool, error) {
	member := job.JobKey.String()
	n, err := enqueueScript.Run(ctx, q.client,
		[]string{q.jobKey(member), q.dueKey(), q.statusKey(models.JobPending)},
		member, string(job.Kind), job.GoalID, job.Date, millis(job.FireAt), millis(q.now()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job %s: %w", member, err)
	}
	return n == 1, nil
}

func (q *Queue) Get(ctx context.Context, key models.JobKey) (models.ScheduledJob, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(key.String())).Result()
	if err != nil {
		return models.ScheduledJob{}, err
	}
	if len(fields) == 0 {
		return models.ScheduledJob{}, fmt.Errorf("job %s: %w", key, apperrors.ErrNotFound)
	}
	return decodeJob(fields)
}

func decodeJob(fields map[string]string) (models.ScheduledJob, error) {
	var errs []error
	num := func(name string) int64 {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
		}
		return v
	}
	at := func(name string) time.Time {
		ms := num(name)
		if ms == 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}

	j := models.ScheduledJob{
		JobKey: models.JobKey{
			Kind:   models.JobKind(fields["kind"]),
			GoalID: fields["goal_id"],
			Date:   fields["date"],
		},
		FireAt:     at("fire_at"),
		Status:     models.JobStatus(fields["status"]),
		Attempts:   int(num("attempts")),
		LeaseUntil: at("lease_until"),
		LastError:  fields["last_error"],
		CreatedAt:  at("created_at"),
	}
	if len(errs) > 0 {
		return models.ScheduledJob{}, fmt.Errorf("corrupt job hash: %w", errors.Join(errs...))
	}
	return j, nil
}

func (q *Queue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.ScheduledJob, error) {
	members, err := claimScript.Run(ctx, q.client,
		[]string{q.dueKey()},
		millis(now), millis(now.Add(lease)), limit, q.prefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := q.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, q.jobKey(m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load claimed jobs: %w", err)
	}

	jobs := make([]models.ScheduledJob, 0, len(members))
	for _, cmd := range cmds {
		j, err := decodeJob(cmd.Val())
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (q *Queue) transition(ctx context.Context, key models.JobKey, status models.JobStatus, leaseUntil time.Time, reason string) error {
	member := key.String()
	n, err := transitionScript.Run(ctx, q.client,
		[]string{q.jobKey(member), q.dueKey(), q.doneKey()},
		member, string(status), millis(leaseUntil), reason, millis(q.now()), q.prefix,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", member, status, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", member, apperrors.ErrNotFound)
	}
	return nil
}

func (q *Queue) Ack(ctx context.Context, key models.JobKey) error {
	return q.transition(ctx, key, models.JobDone, time.Time{}, "")
}

func (q *Queue) Nack(ctx context.Context, key models.JobKey, reason string, retryAt time.Time) error {
	return q.transition(ctx, key, models.JobPending, retryAt, reason)
}

func (q *Queue) Fail(ctx context.Context, key models.JobKey, reason string) error {
	return q.transition(ctx, key, models.JobFailed, time.Time{}, reason)
}

func (q *Queue) Stats(ctx context.Context) (map[models.JobStatus]int, error) {
	pipe := q.client.Pipeline()
	cmds := make(map[models.JobStatus]*redis.IntCmd, len(statuses))
	for _, s := range statuses {
		cmds[s] = pipe.SCard(ctx, q.statusKey(s))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	stats := make(map[models.JobStatus]int, len(statuses))
	for s, cmd := range cmds {
		stats[s] = int(cmd.Val())
	}
	return stats, nil
}

func (q *Queue) Prune(ctx context.Context, before time.Time) (int64, error) {
	members, err := q.client.ZRangeByScore(ctx, q.doneKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(millis(before), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			pipe.Del(ctx, q.jobKey(m))
			pipe.SRem(ctx, q.statusKey(models.JobDone), m)
			pipe.ZRem(ctx, q.doneKey(), m)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return int64(len(members)), nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/filedepot/filedepot/core/depot"
)

const (
	defaultRedisURL  = "redis://localhost:6379"
	defaultOpTimeout = 2 * time.Second

	recordKeyPrefix     = "rec:"
	recordMetaKeyPrefix = "rec:meta:"
	sessionKeyPrefix    = "rec:session:"
	indexKey            = "rec:index"
	statsKey            = "rec:stats"
	engineMetaKey       = "depot:meta"

	statsFieldTemporary  = "temporary_count"
	statsFieldPersistent = "persistent_count"
	statsFieldBytes      = "total_bytes"
)

// RedisStore implements the record collaborator on Redis. Record content and
// metadata are written in one transaction together with the session index and
// the running stats counters.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a record store from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultRedisURL
	}
	client, err := NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) Add(ctx context.Context, content []byte, isPersistent bool, session string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	id := uuid.NewString()
	rec := depot.Record{
		ID:           id,
		Size:         int64(len(content)),
		IsPersistent: isPersistent,
		Session:      session,
		CreatedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	countField := statsFieldTemporary
	if isPersistent {
		countField = statsFieldPersistent
	}
	pipe := s.client.TxPipeline()
	pipe.Set(cctx, recordKey(id), content, 0)
	pipe.Set(cctx, recordMetaKey(id), payload, 0)
	pipe.SAdd(cctx, sessionKey(session), id)
	pipe.ZAdd(cctx, indexKey, redis.Z{Score: float64(rec.CreatedAt.UnixNano()), Member: id})
	pipe.HIncrBy(cctx, statsKey, countField, 1)
	pipe.HIncrBy(cctx, statsKey, statsFieldBytes, rec.Size)
	if _, err := pipe.Exec(cctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	content, err := s.client.Get(cctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, depot.ErrRecordMissing
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, content []byte) error {
	if s == nil || s.client == nil {
		return errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	rec, err := s.getMeta(cctx, id)
	if err != nil {
		return err
	}
	delta := int64(len(content)) - rec.Size
	rec.Size = int64(len(content))
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(cctx, recordKey(id), content, 0)
	pipe.Set(cctx, recordMetaKey(id), payload, 0)
	pipe.HIncrBy(cctx, statsKey, statsFieldBytes, delta)
	_, err = pipe.Exec(cctx)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	if s == nil || s.client == nil {
		return errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	rec, err := s.getMeta(cctx, id)
	if err != nil {
		return err
	}
	countField := statsFieldTemporary
	if rec.IsPersistent {
		countField = statsFieldPersistent
	}
	pipe := s.client.TxPipeline()
	pipe.Del(cctx, recordKey(id))
	pipe.Del(cctx, recordMetaKey(id))
	pipe.SRem(cctx, sessionKey(rec.Session), id)
	pipe.ZRem(cctx, indexKey, id)
	pipe.HIncrBy(cctx, statsKey, countField, -1)
	pipe.HIncrBy(cctx, statsKey, statsFieldBytes, -rec.Size)
	_, err = pipe.Exec(cctx)
	return err
}

func (s *RedisStore) ListBySession(ctx context.Context, session string) ([]depot.Record, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	ids, err := s.client.SMembers(cctx, sessionKey(session)).Result()
	if err != nil {
		return nil, err
	}
	recs, err := s.metasByIDs(cctx, ids)
	if err != nil {
		return nil, err
	}
	sortRecords(recs)
	return recs, nil
}

func (s *RedisStore) List(ctx context.Context) ([]depot.Record, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	ids, err := s.client.ZRange(cctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.metasByIDs(cctx, ids)
}

func (s *RedisStore) Stats(ctx context.Context) (depot.RecordStats, error) {
	if s == nil || s.client == nil {
		return depot.RecordStats{}, errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()

	vals, err := s.client.HGetAll(cctx, statsKey).Result()
	if err != nil {
		return depot.RecordStats{}, err
	}
	return depot.RecordStats{
		TemporaryCount:  parseIntField(vals[statsFieldTemporary]),
		PersistentCount: parseIntField(vals[statsFieldPersistent]),
		TotalBytes:      int64(parseIntField(vals[statsFieldBytes])),
	}, nil
}

// SaveMeta persists the engine metadata snapshot.
func (s *RedisStore) SaveMeta(ctx context.Context, snapshot []byte) error {
	if s == nil || s.client == nil {
		return errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Set(cctx, engineMetaKey, snapshot, 0).Err()
}

// LoadMeta returns the engine metadata snapshot, or nil when none was saved.
func (s *RedisStore) LoadMeta(ctx context.Context) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("record store unavailable")
	}
	cctx, cancel := opContext(ctx)
	defer cancel()
	data, err := s.client.Get(cctx, engineMetaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) getMeta(ctx context.Context, id string) (depot.Record, error) {
	data, err := s.client.Get(ctx, recordMetaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return depot.Record{}, depot.ErrRecordMissing
	}
	if err != nil {
		return depot.Record{}, err
	}
	var rec depot.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return depot.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) metasByIDs(ctx context.Context, ids []string) ([]depot.Record, error) {
	recs := make([]depot.Record, 0, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, recordMetaKey(id))
	}
	_, _ = pipe.Exec(ctx)
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var rec depot.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), defaultOpTimeout)
}

func parseIntField(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

func recordMetaKey(id string) string {
	return recordMetaKeyPrefix + id
}

func sessionKey(session string) string {
	return sessionKeyPrefix + session
}

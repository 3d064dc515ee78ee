// Package redis stores registrations in Redis using optimistic transactions:
// the counter key is WATCHed while it is read, and all writes go out in one
// MULTI/EXEC block. A concurrent change aborts EXEC and surfaces as
// sentinel.ErrConflict.
//
// Layout, for collection C:
//
//	eventreg:counter:<key>   string counter
//	eventreg:C:docs          hash id -> JSON document
//	eventreg:C:by_seq        zset id scored by sequence
//	eventreg:C:by_name       zset "<name>\x00<id>" at score 0, for lex range scans
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/pkg/platform/sentinel"
)

const (
	keyPrefix    = "eventreg:"
	nameSep      = "\x00"
	scanPageSize = 100
)

// RedisStore implements ports.Store on go-redis.
type RedisStore struct {
	client    redis.UniversalClient
	docsKey   string
	bySeqKey  string
	byNameKey string
}

// New creates a store for the given collection.
func New(client redis.UniversalClient, collection string) *RedisStore {
	base := keyPrefix + collection
	return &RedisStore{
		client:    client,
		docsKey:   base + ":docs",
		bySeqKey:  base + ":by_seq",
		byNameKey: base + ":by_name",
	}
}

func counterKey(key string) string {
	return keyPrefix + "counter:" + key
}

// RunInTx executes fn with WATCH semantics and commits its writes atomically.
func (s *RedisStore) RunInTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &redisTx{rtx: rtx, counters: make(map[string]int64)}
		if err := fn(t); err != nil {
			return err
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, value := range t.counters {
				pipe.Set(ctx, counterKey(key), value, 0)
			}
			for _, ins := range t.inserts {
				pipe.HSet(ctx, s.docsKey, ins.id, ins.doc)
				pipe.ZAdd(ctx, s.bySeqKey, redis.Z{Score: float64(ins.seq), Member: ins.id})
				pipe.ZAdd(ctx, s.byNameKey, redis.Z{Score: 0, Member: ins.name + nameSep + ins.id})
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("commit allocation: %w: %w", sentinel.ErrConflict, err)
	}
	return err
}

// ListBySequence returns up to limit records in ascending sequence order.
func (s *RedisStore) ListBySequence(ctx context.Context, limit int) ([]*models.Registration, error) {
	if limit <= 0 {
		return []*models.Registration{}, nil
	}
	ids, err := s.client.ZRange(ctx, s.bySeqKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return s.load(ctx, ids)
}

// FindByNamePrefix pages through the lex index and applies the birth-date
// filter before counting toward the limit.
func (s *RedisStore) FindByNamePrefix(ctx context.Context, q models.NameQuery) ([]*models.Registration, error) {
	out := make([]*models.Registration, 0)
	if q.Limit <= 0 {
		return out, nil
	}
	lo, hi := q.Range()

	for offset := int64(0); len(out) < q.Limit; offset += scanPageSize {
		members, err := s.client.ZRangeByLex(ctx, s.byNameKey, &redis.ZRangeBy{
			Min:    "[" + lo,
			Max:    "(" + hi,
			Offset: offset,
			Count:  scanPageSize,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("search registrations: %w", err)
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			if i := strings.LastIndex(m, nameSep); i >= 0 {
				ids = append(ids, m[i+len(nameSep):])
			}
		}
		page, err := s.load(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			if q.Matches(r) {
				out = append(out, r)
				if len(out) == q.Limit {
					break
				}
			}
		}

		if len(members) < scanPageSize {
			break
		}
	}
	return out, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// load fetches documents in id order, skipping ids whose document is gone.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]*models.Registration, error) {
	out := make([]*models.Registration, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, s.docsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, models.FromDocument(ids[i], models.ParseDocument([]byte(raw))))
	}
	return out, nil
}

type pendingInsert struct {
	id   string
	seq  int64
	name string
	doc  string
}

type redisTx struct {
	rtx      *redis.Tx
	counters map[string]int64
	inserts  []pendingInsert
}

func (t *redisTx) Counter(ctx context.Context, key string) (int64, bool, error) {
	if v, ok := t.counters[key]; ok {
		return v, true, nil
	}
	if err := t.rtx.Watch(ctx, counterKey(key)).Err(); err != nil {
		return 0, false, unavailable("watch counter", err)
	}
	raw, err := t.rtx.Get(ctx, counterKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable("read counter", err)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("counter %q holds non-integer %q", key, raw)
	}
	return value, true, nil
}

// InitCounter watches the key and refuses to overwrite an existing value, so
// two racing initializers cannot both commit.
func (t *redisTx) InitCounter(ctx context.Context, key string) error {
	if err := t.rtx.Watch(ctx, counterKey(key)).Err(); err != nil {
		return unavailable("watch counter", err)
	}
	n, err := t.rtx.Exists(ctx, counterKey(key)).Result()
	if err != nil {
		return unavailable("check counter", err)
	}
	if n > 0 {
		return fmt.Errorf("counter %q already initialized: %w", key, sentinel.ErrConflict)
	}
	t.counters[key] = 1
	return nil
}

func (t *redisTx) UpdateCounter(_ context.Context, key string, value int64) error {
	t.counters[key] = value
	return nil
}

func (t *redisTx) NewID() string {
	return uuid.NewString()
}

func (t *redisTx) Insert(_ context.Context, r *models.Registration) error {
	doc, err := r.MarshalDocument()
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	t.inserts = append(t.inserts, pendingInsert{id: r.ID, seq: r.Sequence, name: r.Name, doc: string(doc)})
	return nil
}

// unavailable marks read-phase failures as retryable: nothing has been
// written before EXEC.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

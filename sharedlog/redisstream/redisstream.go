// Package redisstream stores shard streams as Redis Streams. Each append is
// one XADD whose entry carries the record's tagged fields.
package redisstream

import (
	"context"

	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type RedisStore struct {
	client redis.UniversalClient
}

var (
	_ sharedlog.Store  = (*RedisStore)(nil)
	_ sharedlog.Pinger = (*RedisStore)(nil)
)

// NewRedisStore wraps an existing client. The store owns it from then on.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromConfig dials the server named by the redis-* settings.
func NewRedisStoreFromConfig(v *viper.Viper) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
	}))
}

func (s *RedisStore) Stream(name string) sharedlog.Stream {
	return &redisStream{client: s.client, name: name}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx).Err(), "redis ping")
}

func (s *RedisStore) Close() error { return s.client.Close() }

// Range returns every entry of stream, oldest first, with fields in tag
// order. Downstream readers decode the result with record.Decode.
func (s *RedisStore) Range(ctx context.Context, stream string) ([]record.Fields, error) {
	msgs, err := s.client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, errors.Wrapf(err, "xrange %s", stream)
	}
	out := make([]record.Fields, 0, len(msgs))
	for _, m := range msgs {
		f := make(record.Fields, 0, len(m.Values))
		for _, tag := range fieldOrder {
			v, ok := m.Values[tag]
			if !ok {
				continue
			}
			str, ok := v.(string)
			if !ok {
				return nil, errors.Errorf("xrange %s: entry %s field %q has type %T", stream, m.ID, tag, v)
			}
			f = append(f, record.Field{Tag: tag, Value: []byte(str)})
		}
		out = append(out, f)
	}
	return out, nil
}

var fieldOrder = []string{
	record.TagData,
	record.TagTimestamp,
	record.TagMailboxID,
	record.TagOpType,
	record.TagTxnID,
	record.TagSubmitTime,
}

type redisStream struct {
	client redis.UniversalClient
	name   string
}

func (s *redisStream) Name() string { return s.name }

func (s *redisStream) Append(ctx context.Context, fields record.Fields) (sharedlog.RecordRef, error) {
	values := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		values = append(values, f.Tag, f.Value)
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.name,
		Values: values,
	}).Result()
	if err != nil {
		return sharedlog.RecordRef{}, errors.Wrapf(err, "xadd %s", s.name)
	}
	return sharedlog.RecordRef{ID: id}, nil
}

func (s *redisStream) Len(ctx context.Context) (int64, error) {
	n, err := s.client.XLen(ctx, s.name).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "xlen %s", s.name)
	}
	return n, nil
}

func (s *redisStream) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.name).Result()
	if err != nil {
		return false, errors.Wrapf(err, "exists %s", s.name)
	}
	return n > 0, nil
}

func (s *redisStream) Delete(ctx context.Context) (bool, error) {
	n, err := s.client.Del(ctx, s.name).Result()
	if err != nil {
		return false, errors.Wrapf(err, "del %s", s.name)
	}
	return n > 0, nil
}

package draftcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
)

const keyPrefix = "admissions:draft:"

// NewRedisClient connects to the configured Redis server.
func NewRedisClient(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ admission.DraftStore = (*redisStore)(nil)

// NewRedisStore keeps drafts as JSON values expiring after `ttl`. Every save renews the TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) admission.DraftStore {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) SaveDraft(ctx context.Context, d admission.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return errors.Wrap(s.client.Set(ctx, keyPrefix+d.ID, data, s.ttl).Err(), "saving draft")
}

func (s *redisStore) GetDraft(ctx context.Context, id string) (admission.Draft, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return admission.Draft{}, errors.Wrapf(core.ErrNotFound, "draft %q", id)
	} else if err != nil {
		return admission.Draft{}, errors.Wrap(err, "loading draft")
	}

	var d admission.Draft
	if err = json.Unmarshal(data, &d); err != nil {
		return admission.Draft{}, errors.Wrap(err, "decoding draft")
	}
	return d, nil
}

func (s *redisStore) DeleteDraft(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, keyPrefix+id).Err(), "deleting draft")
}

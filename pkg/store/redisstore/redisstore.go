// ABOUTME: Redis-backed store using go-redis v9
// ABOUTME: Conditional writes and collection creation use WATCH/MULTI transactions

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nainya/doccatalog/pkg/store"
)

// DefaultPrefix namespaces every key written by the store
const DefaultPrefix = "doccatalog:"

// maxTxAttempts bounds retries of transactions aborted by an unrelated concurrent write
const maxTxAttempts = 16

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DefaultConfig returns settings for a local Redis
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: DefaultPrefix,
	}
}

// Store is a store.Store over Redis
type Store struct {
	client *redis.Client
	prefix string
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.AtomicCreator = (*Store)(nil)
)

// Open connects to Redis and verifies the connection
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", store.ErrUnavailable, cfg.Addr, err)
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(name string) string { return s.prefix + "record:" + name }
func (s *Store) recordsKey() string { return s.prefix + "records" }
func (s *Store) containersKey() string { return s.prefix + "containers" }
func (s *Store) documentsKey(container string) string { return s.prefix + "docs:" + container }

// wrap leaves store sentinels alone and classifies everything else as unavailable
func wrap(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrExists),
		errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, what, err)
	}
}

// watch runs fn in an optimistic transaction, retrying when an unrelated write aborts it
func (s *Store) watch(ctx context.Context, what string, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return wrap(err, what)
	}
	return fmt.Errorf("%w: %s: too much contention", store.ErrUnavailable, what)
}

func (s *Store) GetRecord(ctx context.Context, name string) (store.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(name)).Result()
	if err != nil {
		return store.Record{}, wrap(err, "get record "+name)
	}
	return decodeRecord(name, fields)
}

func decodeRecord(name string, fields map[string]string) (store.Record, error) {
	if len(fields) == 0 {
		return store.Record{}, fmt.Errorf("%w: record %s", store.ErrNotFound, name)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return store.Record{}, fmt.Errorf("%w: record %s has bad version %q", store.ErrUnavailable, name, fields["version"])
	}
	return store.Record{Name: name, Version: version, Data: []byte(fields["data"])}, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec store.Record) error {
	key := s.recordKey(rec.Name)
	return s.watch(ctx, "create record "+rec.Name, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: record %s", store.ErrExists, rec.Name)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", rec.Version, "data", rec.Data)
			pipe.SAdd(ctx, s.recordsKey(), rec.Name)
			return nil
		})
		return err
	}, key)
}

func (s *Store) UpdateRecord(ctx context.Context, rec store.Record, expected int64) error {
	key := s.recordKey(rec.Name)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.HGet(ctx, key, "version").Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: record %s", store.ErrNotFound, rec.Name)
		}
		if err != nil {
			return err
		}
		current, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: record %s has bad version %q", store.ErrUnavailable, rec.Name, v)
		}
		if current != expected {
			return fmt.Errorf("%w: record %s at version %d, expected %d", store.ErrVersionConflict, rec.Name, current, expected)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", rec.Version, "data", rec.Data)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: record %s changed during update", store.ErrVersionConflict, rec.Name)
	}
	return wrap(err, "update record "+rec.Name)
}

func (s *Store) DeleteRecord(ctx context.Context, name string) error {
	key := s.recordKey(name)
	return s.watch(ctx, "delete record "+name, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: record %s", store.ErrNotFound, name)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.recordsKey(), name)
			return nil
		})
		return err
	}, key)
}

func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.recordsKey()).Result()
	if err != nil {
		return nil, wrap(err, "list records")
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) CreateContainer(ctx context.Context, name string) error {
	added, err := s.client.SAdd(ctx, s.containersKey(), name).Result()
	if err != nil {
		return wrap(err, "create container "+name)
	}
	if added == 0 {
		return fmt.Errorf("%w: container %s", store.ErrExists, name)
	}
	return nil
}

// CreateCollection writes the record and registers the container in one MULTI block
func (s *Store) CreateCollection(ctx context.Context, rec store.Record, container string) error {
	key := s.recordKey(rec.Name)
	return s.watch(ctx, "create collection "+rec.Name, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: record %s", store.ErrExists, rec.Name)
		}
		taken, err := tx.SIsMember(ctx, s.containersKey(), container).Result()
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: container %s", store.ErrExists, container)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", rec.Version, "data", rec.Data)
			pipe.SAdd(ctx, s.recordsKey(), rec.Name)
			pipe.SAdd(ctx, s.containersKey(), container)
			pipe.Del(ctx, s.documentsKey(container))
			return nil
		})
		return err
	}, key, s.containersKey())
}

func (s *Store) DropContainer(ctx context.Context, name string) error {
	return s.watch(ctx, "drop container "+name, func(tx *redis.Tx) error {
		ok, err := tx.SIsMember(ctx, s.containersKey(), name).Result()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: container %s", store.ErrNotFound, name)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, s.containersKey(), name)
			pipe.Del(ctx, s.documentsKey(name))
			return nil
		})
		return err
	}, s.containersKey())
}

func (s *Store) ContainerExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.containersKey(), name).Result()
	if err != nil {
		return false, wrap(err, "container "+name)
	}
	return ok, nil
}

func (s *Store) PutDocument(ctx context.Context, container string, doc store.Document) error {
	return s.watch(ctx, "put document "+container+"/"+doc.ID, func(tx *redis.Tx) error {
		ok, err := tx.SIsMember(ctx, s.containersKey(), container).Result()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: container %s", store.ErrNotFound, container)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.documentsKey(container), doc.ID, doc.Data)
			return nil
		})
		return err
	}, s.containersKey())
}

func (s *Store) GetDocument(ctx context.Context, container, id string) (store.Document, error) {
	data, err := s.client.HGet(ctx, s.documentsKey(container), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Document{}, fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	if err != nil {
		return store.Document{}, wrap(err, "get document "+container+"/"+id)
	}
	return store.Document{ID: id, Data: data}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, container, id string) error {
	n, err := s.client.HDel(ctx, s.documentsKey(container), id).Result()
	if err != nil {
		return wrap(err, "delete document "+container+"/"+id)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, container string) ([]store.Document, error) {
	ok, err := s.ContainerExists(ctx, container)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}

	fields, err := s.client.HGetAll(ctx, s.documentsKey(container)).Result()
	if err != nil {
		return nil, wrap(err, "list documents "+container)
	}
	docs := make([]store.Document, 0, len(fields))
	for id, data := range fields {
		docs = append(docs, store.Document{ID: id, Data: []byte(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

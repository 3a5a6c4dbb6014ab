//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	// Cluster mode: when REDIS_CLUSTER_ADDRS is set (comma-separated).
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				clusterAddrs := splitAddrs(addrs)
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: clusterAddrs})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	// Sentinel mode: when REDIS_SENTINEL_ADDRS and REDIS_SENTINEL_MASTER are set.
	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range splitComma(s) {
		a = trimSpace(a)
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func splitComma(s string) []string {
	result := []string{}
	current := ""
	for _, c := range s {
		if c == ',' {
			result = append(result, current)
			current = ""
		} else {
			current += string(c)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

func buildRedisStore(t *testing.T, rdb redis.UniversalClient, sink goSession.Sink) (*goSession.Store, *goSession.Queue) {
	t.Helper()
	queue := goSession.NewQueue()
	s, err := goSession.New().
		WithStorage(storage.NewRedis(rdb, "compat", 0)).
		WithScheduler(queue).
		WithEventSink(sink).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s, queue
}

func flushStore(t *testing.T, s *goSession.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func TestRedisCompatRestartRestoresTokenOnly(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			s, _ := buildRedisStore(t, rdb, nil)
			s.Login(goSession.User{"id": "u1", "email": "a@example.com"}, "tok-1")
			s.UpdateUser(goSession.User{"name": "Ada"})
			s.Close()

			restarted, _ := buildRedisStore(t, rdb, nil)
			defer restarted.Close()

			tok, ok := restarted.Token()
			if !ok || tok != "tok-1" {
				t.Fatalf("expected restored token tok-1, got %q present=%v", tok, ok)
			}
			if restarted.User() != nil || restarted.IsAuthenticated() {
				t.Fatal("user record must not be restored")
			}
		})
	}
}

func TestRedisCompatLogoutPersistsNullToken(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			s, _ := buildRedisStore(t, rdb, nil)
			s.Login(goSession.User{"id": "u1"}, "tok-1")
			s.Logout()
			flushStore(t, s)
			s.Close()

			raw, err := rdb.Get(context.Background(), "compat:"+goSession.DefaultSlot).Result()
			if err != nil {
				t.Fatalf("GET slot failed: %v", err)
			}
			if raw != `{"token":null}` {
				t.Fatalf("expected null token snapshot, got %s", raw)
			}

			restarted, _ := buildRedisStore(t, rdb, nil)
			defer restarted.Close()
			if _, ok := restarted.Token(); ok {
				t.Fatal("expected no token after logout and restart")
			}
		})
	}
}

func TestRedisCompatSharedSlotLastWriteWins(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			a, _ := buildRedisStore(t, rdb, nil)
			b, _ := buildRedisStore(t, rdb, nil)

			a.Login(goSession.User{"id": "a"}, "tok-a")
			flushStore(t, a)
			b.Login(goSession.User{"id": "b"}, "tok-b")
			flushStore(t, b)
			a.Close()
			b.Close()

			restarted, _ := buildRedisStore(t, rdb, nil)
			defer restarted.Close()
			if tok, _ := restarted.Token(); tok != "tok-b" {
				t.Fatalf("expected last writer tok-b, got %q", tok)
			}
		})
	}
}

func TestRedisCompatCorruptSlotStartsEmpty(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			if err := rdb.Set(context.Background(), "compat:"+goSession.DefaultSlot, "not json", 0).Err(); err != nil {
				t.Fatalf("SET failed: %v", err)
			}

			sink := goSession.NewChannelSink(8)
			s, _ := buildRedisStore(t, rdb, sink)
			defer s.Close()

			if _, ok := s.Token(); ok {
				t.Fatal("expected empty session on corrupt snapshot")
			}
			select {
			case ev := <-sink.Events():
				if ev.Type != goSession.EventPersistenceReadFailure {
					t.Fatalf("expected read failure event, got %s", ev.Type)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for read failure event")
			}
		})
	}
}

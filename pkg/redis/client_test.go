package redis

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected stored value, got %q", got)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); err != Nil {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to lose, ok=%v err=%v", ok, err)
	}
}

func TestCacheKeyBuilder(t *testing.T) {
	client := &Client{}
	if got := client.CacheKey("product", "42"); got != "sf:cache:product:42" {
		t.Fatalf("unexpected product key %s", got)
	}
	if got := client.CacheKey("categories"); got != "sf:cache:categories" {
		t.Fatalf("unexpected categories key %s", got)
	}
	if got := client.CacheKey("cart", ""); got != "sf:cache:cart" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestDelPattern(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for _, key := range []string{"sf:cache:products:a", "sf:cache:products:b", "sf:cache:cart:u1"} {
		if err := client.Set(ctx, key, "x", 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	if err := client.DelPattern(ctx, "sf:cache:products:*"); err != nil {
		t.Fatalf("del pattern failed: %v", err)
	}
	if _, err := client.Get(ctx, "sf:cache:products:a"); err != Nil {
		t.Fatalf("expected products:a removed, got %v", err)
	}
	if _, err := client.Get(ctx, "sf:cache:cart:u1"); err != nil {
		t.Fatalf("expected cart key untouched, got %v", err)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	var keys []string
	for key := range m.data {
		if ok, _ := filepath.Match(match, key); ok {
			keys = append(keys, key)
		}
	}
	cmd := redis.NewScanCmd(ctx, nil)
	cmd.SetVal(keys, 0)
	return cmd
}

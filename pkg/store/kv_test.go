package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// exerciseKV runs the behavior every KV backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "token"); err != nil || ok {
		t.Fatalf("empty store get: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := kv.Set(ctx, "user", `{"id":"1"}`); err != nil {
		t.Fatalf("set user: %v", err)
	}
	if err := kv.Set(ctx, "token", "def"); err != nil {
		t.Fatalf("overwrite token: %v", err)
	}
	got, ok, err := kv.Get(ctx, "token")
	if err != nil || !ok || got != "def" {
		t.Fatalf("get token = %q ok=%v err=%v", got, ok, err)
	}
	if err := kv.Delete(ctx, "token", "user", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, key := range []string{"token", "user"} {
		if _, ok, err := kv.Get(ctx, key); err != nil || ok {
			t.Fatalf("%s should be gone: ok=%v err=%v", key, ok, err)
		}
	}
	if err := kv.Delete(ctx); err != nil {
		t.Fatalf("delete no keys: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)
	kv.Close()
	if err := kv.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("new sqlite kv: %v", err)
	}
	exerciseKV(t, kv)
	kv.Close()
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("new sqlite kv: %v", err)
	}
	if err := kv.Set(context.Background(), "token", "persisted"); err != nil {
		t.Fatalf("set: %v", err)
	}
	kv.Close()

	reopened, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(context.Background(), "token")
	if err != nil || !ok || got != "persisted" {
		t.Fatalf("after reopen got %q ok=%v err=%v", got, ok, err)
	}
}

func TestSQLiteKVRequiresPath(t *testing.T) {
	if _, err := NewSQLiteKV(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRedisKV(t *testing.T) {
	redis := miniredis.RunT(t)
	kv, err := NewRedisKV(redis.Addr(), "", "test:session")
	if err != nil {
		t.Fatalf("new redis kv: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)

	if err := kv.Set(context.Background(), "token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := redis.Get("test:session:token"); got != "abc" {
		t.Fatalf("expected prefixed key in redis, got %q", got)
	}
	if redis.TTL("test:session:token") != 0 {
		t.Fatalf("session keys must not expire")
	}
}

func TestRedisKVRequiresAddr(t *testing.T) {
	if kv, err := NewRedisKV("", "", ""); err == nil || kv != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestSealedKVEncryptsAtRest(t *testing.T) {
	key, err := ParseSealKey(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	inner := NewMemoryKV()
	kv := Sealed(inner, key)
	exerciseKV(t, kv)

	ctx := context.Background()
	if err := kv.Set(ctx, "token", "secret-token"); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, _, _ := inner.Get(ctx, "token")
	if raw == "" || strings.Contains(raw, "secret-token") {
		t.Fatalf("value stored in the clear: %q", raw)
	}
	got, ok, err := kv.Get(ctx, "token")
	if err != nil || !ok || got != "secret-token" {
		t.Fatalf("open sealed value = %q ok=%v err=%v", got, ok, err)
	}

	otherKey, _ := ParseSealKey(strings.Repeat("cd", 32))
	if _, _, err := Sealed(inner, otherKey).Get(ctx, "token"); !errors.Is(err, ErrSealedValue) {
		t.Fatalf("expected ErrSealedValue with wrong key, got %v", err)
	}
}

func TestParseSealKeyRejectsShortKeys(t *testing.T) {
	if _, err := ParseSealKey("abcd"); err == nil {
		t.Fatalf("expected error for short key")
	}
	if _, err := ParseSealKey("zz"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
}

func TestGormKV(t *testing.T) {
	dsn := os.Getenv("CONSOLE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CONSOLE_TEST_DATABASE_URL not set")
	}
	kv, err := NewGormKV(dsn, "test-"+t.Name())
	if err != nil {
		t.Fatalf("new gorm kv: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)
}

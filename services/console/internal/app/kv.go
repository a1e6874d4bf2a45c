package app

import (
	"fmt"
	"strings"

	"adminconsole/pkg/store"
)

// OpenKV opens the session storage backend named by cfg and wraps it with
// encryption when a key is configured.
func OpenKV(cfg Config) (store.KV, error) {
	var (
		kv  store.KV
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case "", "sqlite":
		kv, err = store.NewSQLiteKV(cfg.SessionPath)
	case "redis":
		kv, err = store.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
	case "postgres":
		kv, err = store.NewGormKV(cfg.DatabaseURL, cfg.SessionNamespace)
	case "memory":
		kv = store.NewMemoryKV()
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s session store: %w", cfg.SessionBackend, err)
	}
	if key := strings.TrimSpace(cfg.SessionEncryptionKey); key != "" {
		sealKey, err := store.ParseSealKey(key)
		if err != nil {
			_ = kv.Close()
			return nil, err
		}
		kv = store.Sealed(kv, sealKey)
	}
	return kv, nil
}

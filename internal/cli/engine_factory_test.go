package cli

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/config"
	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{Store: config.StoreMemory, ThreadTTL: time.Hour},
		Engine:  config.EngineConfig{Delivery: caregraph.DeliverTokens, TurnTimeout: 5 * time.Second},
	}
}

func turn(t *testing.T, rt *Runtime, message string) caregraph.TurnResult {
	t.Helper()
	res, err := rt.Engine.Turn(context.Background(), caregraph.TurnRequest{Message: message},
		func(domain.Event) error { return nil })
	require.NoError(t, err)
	return res
}

func readThreadFile(t *testing.T, dir, id string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)
	return string(data)
}

func TestBuildEngine_MemoryDefault(t *testing.T) {
	rt, err := BuildEngine(testConfig(), logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	defer rt.Close()

	assert.True(t, rt.Janitor)
	res := turn(t, rt, "I have a fever")
	assert.Equal(t, domain.Clinical, res.Responder)

	ids, err := rt.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.ThreadID}, ids)
}

func TestBuildEngine_FileStoreWithPII(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Store = config.StoreFile
	cfg.Session.Dir = t.TempDir()
	cfg.Security.RedactPII = true

	rt, err := BuildEngine(cfg, logging.NewNop(), BuildOptions{})
	require.NoError(t, err)

	res := turn(t, rt, "my fever is bad, mail jane@example.com")
	raw := readThreadFile(t, cfg.Session.Dir, res.ThreadID)
	assert.NotContains(t, raw, "jane@example.com")
	assert.Contains(t, raw, "***")
}

func TestBuildEngine_Encryption(t *testing.T) {
	key := hex.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg := testConfig()
	cfg.Session.Store = config.StoreFile
	cfg.Session.Dir = t.TempDir()
	cfg.Security.EncryptionKey = key

	rt, err := BuildEngine(cfg, logging.NewNop(), BuildOptions{})
	require.NoError(t, err)

	res := turn(t, rt, "I have a fever")
	assert.NotContains(t, readThreadFile(t, cfg.Session.Dir, res.ThreadID), "fever")

	thread, err := rt.Store.Load(context.Background(), res.ThreadID)
	require.NoError(t, err)
	require.NotEmpty(t, thread.History)
	assert.Equal(t, "I have a fever", thread.History[0].Content)
}

func TestBuildEngine_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Session.Store = config.StoreRedis
	cfg.Session.RedisURL = "redis://" + mr.Addr()

	rt, err := BuildEngine(cfg, logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	defer rt.Close()

	assert.False(t, rt.Janitor)
	res := turn(t, rt, "I need to book an appointment")
	assert.Equal(t, domain.Scheduling, res.Responder)
	assert.True(t, mr.Exists("caregraph:thread:"+res.ThreadID))
}

func TestBuildEngine_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown store", func(c *config.Config) { c.Session.Store = "etcd" }, "unknown store"},
		{"bad key", func(c *config.Config) { c.Security.EncryptionKey = "short" }, "invalid encryption key"},
		{"bad fallback key", func(c *config.Config) {
			c.Security.EncryptionKey = hex.EncodeToString(make([]byte, 32))
			c.Security.FallbackKeys = []string{"nope"}
		}, "invalid fallback key #1"},
		{"missing topology", func(c *config.Config) {
			c.Engine.Topology = filepath.Join(t.TempDir(), "missing.yaml")
		}, "error loading topology"},
		{"bad delivery", func(c *config.Config) { c.Engine.Delivery = "carrier-pigeon" }, "error initializing engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := BuildEngine(cfg, logging.NewNop(), BuildOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

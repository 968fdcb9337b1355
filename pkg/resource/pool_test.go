package resource

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SharedAcrossManagers(t *testing.T) {
	t.Parallel()

	s := miniredis.RunT(t)
	pool := NewPool()
	raw := map[string]interface{}{"server": s.Addr(), "persistent_id": "pool-a"}

	m1 := NewManager(WithPool(pool))
	m2 := NewManager(WithPool(pool))
	require.NoError(t, m1.SetResource("cache", raw))
	require.NoError(t, m2.SetResource("cache", raw))

	conn1, err := m1.GetResource(context.Background(), "cache")
	require.NoError(t, err)
	conn2, err := m2.GetResource(context.Background(), "cache")
	require.NoError(t, err)

	assert.NotSame(t, conn1, conn2, "each manager owns its handle")
	assert.Same(t, conn1.Client(), conn2.Client(), "handles share the pooled client")
	assert.Equal(t, "pool-a", conn1.PersistentID())
	assert.Equal(t, 1, pool.Len())

	require.NoError(t, m1.Close())
	assert.Equal(t, 1, pool.Len())
	assert.NoError(t, conn2.Client().Ping(context.Background()).Err(), "client stays open while referenced")

	require.NoError(t, m2.Close())
	assert.Equal(t, 0, pool.Len())
}

func TestPool_DifferentPersistentIDs(t *testing.T) {
	t.Parallel()

	s := miniredis.RunT(t)
	pool := NewPool()
	m := NewManager(WithPool(pool))
	defer m.Close()

	require.NoError(t, m.SetResource("a", map[string]interface{}{"server": s.Addr(), "persistent_id": "pool-a"}))
	require.NoError(t, m.SetResource("b", map[string]interface{}{"server": s.Addr(), "persistent_id": "pool-b"}))

	conn1, err := m.GetResource(context.Background(), "a")
	require.NoError(t, err)
	conn2, err := m.GetResource(context.Background(), "b")
	require.NoError(t, err)

	assert.NotSame(t, conn1.Client(), conn2.Client())
	assert.Equal(t, 2, pool.Len())
}

func TestPool_WithoutPersistentID(t *testing.T) {
	t.Parallel()

	s := miniredis.RunT(t)
	pool := NewPool()
	m := NewManager(WithPool(pool))
	defer m.Close()

	require.NoError(t, m.SetResource("a", s.Addr()))
	require.NoError(t, m.SetResource("b", s.Addr()))

	conn1, err := m.GetResource(context.Background(), "a")
	require.NoError(t, err)
	conn2, err := m.GetResource(context.Background(), "b")
	require.NoError(t, err)

	assert.NotSame(t, conn1.Client(), conn2.Client())
	assert.Equal(t, 0, pool.Len())
}

func TestPool_ReleaseUnknownKey(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewPool().release("unknown"))
}

func TestNewManager_UsesSharedPool(t *testing.T) {
	t.Parallel()

	assert.Same(t, SharedPool(), NewManager().pool)
}

func TestPoolKey_Consistency(t *testing.T) {
	t.Parallel()

	base := Config{Server: Server{Host: "cache-1", Port: 6379}, PersistentID: "pool-a"}

	tests := []struct {
		name   string
		config Config
	}{
		{"persistent id", Config{Server: base.Server, PersistentID: "pool-b"}},
		{"host", Config{Server: Server{Host: "cache-2", Port: 6379}, PersistentID: "pool-a"}},
		{"port", Config{Server: Server{Host: "cache-1", Port: 6380}, PersistentID: "pool-a"}},
		{"tls", Config{Server: Server{Host: "cache-1", Port: 6379, TLS: true}, PersistentID: "pool-a"}},
		{"password", Config{Server: base.Server, PersistentID: "pool-a", Password: "secret"}},
		{"database", Config{Server: base.Server, PersistentID: "pool-a", Database: 1}},
		{"client name", Config{Server: base.Server, PersistentID: "pool-a", LibOptions: map[string]string{LibOptClientName: "api"}}},
	}

	assert.Equal(t, poolKey(base), poolKey(base), "hash should be consistent for same config")
	assert.Len(t, poolKey(base), 32)

	for _, tt := range tests {
		assert.NotEqual(t, poolKey(base), poolKey(tt.config), "hash should change with %s", tt.name)
	}

	withPrefix := base.clone()
	withPrefix.LibOptions = map[string]string{LibOptPrefix: "app:"}
	assert.Equal(t, poolKey(base), poolKey(withPrefix), "prefix does not affect transport")
}

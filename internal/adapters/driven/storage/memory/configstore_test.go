package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("key", "original"))
	require.NoError(t, store.Set("key", "updated"))

	val, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "updated", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"str":       "value",
		"int":       42,
		"int64":     int64(7),
		"float":     0.75,
		"bool":      true,
		"strings":   []string{"a", "b"},
		"any_slice": []any{"x", 1, "y"},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "value"},
		{"string wrong type", store.GetString("int"), ""},
		{"string missing", store.GetString("missing"), ""},
		{"int", store.GetInt("int"), 42},
		{"int from int64", store.GetInt("int64"), 7},
		{"int from float", store.GetInt("float"), 0},
		{"int wrong type", store.GetInt("str"), 0},
		{"float", store.GetFloat("float"), 0.75},
		{"float from int", store.GetFloat("int"), 42.0},
		{"float from int64", store.GetFloat("int64"), 7.0},
		{"float wrong type", store.GetFloat("bool"), 0.0},
		{"bool", store.GetBool("bool"), true},
		{"bool wrong type", store.GetBool("str"), false},
		{"strings", store.GetStringSlice("strings"), []string{"a", "b"}},
		{"strings from any", store.GetStringSlice("any_slice"), []string{"x", "y"}},
		{"strings wrong type", store.GetStringSlice("str"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_Persistence(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			_ = store.Set(key, i)
			assert.Equal(t, i, store.GetInt(key))
		}(i)
	}
	wg.Wait()
}

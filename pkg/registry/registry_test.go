package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

func TestRegisterAndGet(t *testing.T) {
	reg := New[int]()

	require.NoError(t, reg.Register("one", 1))

	got, err := reg.Get("one")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestRegisterEmptyName(t *testing.T) {
	reg := New[string]()
	err := reg.Register("", "x")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestRegisterDuplicate(t *testing.T) {
	reg := New[string]()
	require.NoError(t, reg.Register("dup", "a"))

	err := reg.Register("dup", "b")
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists))
}

func TestGetMissing(t *testing.T) {
	reg := New[string]()
	_, err := reg.Get("nope")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestRemove(t *testing.T) {
	reg := New[string]()
	require.NoError(t, reg.Register("gone", "x"))
	require.NoError(t, reg.Remove("gone"))
	assert.False(t, reg.Has("gone"))

	err := reg.Remove("gone")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestListSorted(t *testing.T) {
	reg := New[int]()
	for i, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, reg.Register(name, i))
	}
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, reg.List())
}

func TestClearAndCount(t *testing.T) {
	reg := New[int]()
	require.NoError(t, reg.Register("a", 1))
	require.NoError(t, reg.Register("b", 2))
	assert.Equal(t, 2, reg.Count())

	reg.Clear()
	assert.Equal(t, 0, reg.Count())
}

func TestConcurrentAccess(t *testing.T) {
	reg := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = reg.Register(fmt.Sprintf("item-%d", n), n)
			_ = reg.List()
			_, _ = reg.Get(fmt.Sprintf("item-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Count())
}

func TestMustRegisterPanics(t *testing.T) {
	reg := New[string]()
	MustRegister(reg, "ok", "v")

	assert.Panics(t, func() {
		MustRegister(reg, "ok", "again")
	})
}

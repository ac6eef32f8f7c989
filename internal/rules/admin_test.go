package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-gateway/internal/watch"
)

func TestAdminOpenByDefaultWhenUnconfigured(t *testing.T) {
	set := NewAdminSet(filepath.Join(t.TempDir(), "admins.json"), nil)

	// 两级集合都为空时放行所有调用者
	assert.True(t, set.IsAdmin(1))
	assert.True(t, set.IsAdmin(999))
	assert.False(t, set.IsSuperAdmin(1))
}

func TestAdminClosesOnceConfigured(t *testing.T) {
	set := NewAdminSet(filepath.Join(t.TempDir(), "admins.json"), []int64{1})

	assert.True(t, set.IsAdmin(1))
	assert.True(t, set.IsSuperAdmin(1))
	assert.False(t, set.IsAdmin(2))

	require.NoError(t, set.AddAdmin(2))
	assert.True(t, set.IsAdmin(2))
	assert.False(t, set.IsSuperAdmin(2))
	assert.False(t, set.IsAdmin(3))
}

func TestSuperAdminInvariant(t *testing.T) {
	set := NewAdminSet(filepath.Join(t.TempDir(), "admins.json"), []int64{1})

	// 超级管理员不能进入动态列表,也不能从动态列表删除
	assert.ErrorIs(t, set.AddAdmin(1), watch.ErrSuperAdmin)
	assert.ErrorIs(t, set.RemoveAdmin(1), watch.ErrSuperAdmin)

	_, dynamicAdmins := set.ListAdmins()
	assert.Empty(t, dynamicAdmins)
}

func TestAdminAddRemove(t *testing.T) {
	set := NewAdminSet(filepath.Join(t.TempDir(), "admins.json"), []int64{1})

	require.NoError(t, set.AddAdmin(2))
	assert.ErrorIs(t, set.AddAdmin(2), watch.ErrAdminExists)

	require.NoError(t, set.RemoveAdmin(2))
	assert.ErrorIs(t, set.RemoveAdmin(2), watch.ErrAdminNotFound)
}

func TestAdminPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")

	set := NewAdminSet(path, []int64{1})
	require.NoError(t, set.AddAdmin(2))
	require.NoError(t, set.AddAdmin(3))

	reloaded := NewAdminSet(path, []int64{1})
	superAdmins, dynamicAdmins := reloaded.ListAdmins()
	assert.Equal(t, []int64{1}, superAdmins)
	assert.Equal(t, []int64{2, 3}, dynamicAdmins)
}

func TestAdminLoadFiltersSuperAdmins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"admins":[1,2,2]}`), 0o644))

	// 文件里混入的超级管理员与重复项在加载时被过滤
	set := NewAdminSet(path, []int64{1})
	_, dynamicAdmins := set.ListAdmins()
	assert.Equal(t, []int64{2}, dynamicAdmins)
}

func TestAdminLoadCorruptedFailsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	require.NoError(t, os.WriteFile(path, []byte("oops"), 0o644))

	set := NewAdminSet(path, []int64{1})
	_, dynamicAdmins := set.ListAdmins()
	assert.Empty(t, dynamicAdmins)

	require.NoError(t, set.AddAdmin(2))
}

func TestAdminMutationsRollBackOnPersistFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	set := NewAdminSet(path, []int64{1})
	require.NoError(t, set.AddAdmin(2))

	blockPersist(t, path)

	require.Error(t, set.AddAdmin(3))
	assert.False(t, set.IsAdmin(3))

	require.Error(t, set.RemoveAdmin(2))
	assert.True(t, set.IsAdmin(2))

	unblockPersist(t, path)

	require.NoError(t, set.AddAdmin(3))
	assert.True(t, set.IsAdmin(3))
}

package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowAdmitExactlyOnce(t *testing.T) {
	window := NewWindow(8)
	ctx := context.Background()

	assert.True(t, window.Admit(ctx, -200, 1))
	assert.False(t, window.Admit(ctx, -200, 1))
	assert.False(t, window.Admit(ctx, -200, 1))
}

func TestWindowPerChatIsolation(t *testing.T) {
	window := NewWindow(8)
	ctx := context.Background()

	assert.True(t, window.Admit(ctx, -200, 1))
	// 不同会话的同一 messageId 互不影响
	assert.True(t, window.Admit(ctx, -300, 1))
	assert.False(t, window.Admit(ctx, -200, 1))
	assert.False(t, window.Admit(ctx, -300, 1))
}

func TestWindowFIFOEviction(t *testing.T) {
	window := NewWindow(3)
	ctx := context.Background()

	assert.True(t, window.Admit(ctx, -200, 1))
	assert.True(t, window.Admit(ctx, -200, 2))
	assert.True(t, window.Admit(ctx, -200, 3))
	assert.False(t, window.Admit(ctx, -200, 1))

	// 第 4 条挤掉最旧的 1,此后 1 可再次放行
	assert.True(t, window.Admit(ctx, -200, 4))
	assert.True(t, window.Admit(ctx, -200, 1))

	// 2 被 1 的重新准入挤出,3/4 仍在窗口内
	assert.False(t, window.Admit(ctx, -200, 3))
	assert.False(t, window.Admit(ctx, -200, 4))
	assert.True(t, window.Admit(ctx, -200, 2))
}

func TestWindowDefaultCapacity(t *testing.T) {
	window := NewWindow(0)
	ctx := context.Background()

	for messageID := int64(0); messageID < DefaultWindowSize; messageID++ {
		assert.True(t, window.Admit(ctx, -200, messageID))
	}
	// 窗口未超限时最早的标识仍被拦截
	assert.False(t, window.Admit(ctx, -200, 0))
}

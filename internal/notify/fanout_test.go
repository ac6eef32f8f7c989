package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-gateway/internal/recorder"
	"watch-gateway/internal/watch"
)

// ---- Notifier Mock ----

type mockNotifier struct {
	mu       sync.Mutex
	sent     []int64
	failFor  map[int64]error
	lastText string
}

func (notifier *mockNotifier) DeliverMessage(_ context.Context, targetID int64, text string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	if err, shouldFail := notifier.failFor[targetID]; shouldFail {
		return err
	}
	notifier.sent = append(notifier.sent, targetID)
	notifier.lastText = text
	return nil
}

func testMessage() watch.InboundMessage {
	return watch.InboundMessage{ChatID: -200, SenderID: 555, MessageID: 9, Text: "Promo code"}
}

func TestFanoutDeliversToAllTargets(t *testing.T) {
	notifier := &mockNotifier{}
	fanout := NewFanout(notifier, nil)

	hit := hitWith("promo")
	hit.NotifyTargets = []int64{7, 8, 9}
	fanout.Deliver(context.Background(), 100, hit, testMessage())

	assert.Equal(t, []int64{7, 8, 9}, notifier.sent)
}

func TestFanoutFallsBackToOwner(t *testing.T) {
	notifier := &mockNotifier{}
	fanout := NewFanout(notifier, nil)

	// 未设置通知目标时发送给配置者本人
	fanout.Deliver(context.Background(), 100, hitWith("promo"), testMessage())
	assert.Equal(t, []int64{100}, notifier.sent)
}

func TestFanoutIsolatesTargetFailure(t *testing.T) {
	notifier := &mockNotifier{failFor: map[int64]error{8: errors.New("blocked")}}
	records := recorder.NewMemoryStore(10)
	fanout := NewFanout(notifier, records)

	hit := hitWith("promo")
	hit.NotifyTargets = []int64{7, 8, 9}
	fanout.Deliver(context.Background(), 100, hit, testMessage())

	// 中间目标失败不影响其余目标
	assert.Equal(t, []int64{7, 9}, notifier.sent)

	saved, err := records.QueryRecords(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, saved, 3)

	statusByTarget := make(map[int64]string)
	for _, record := range saved {
		statusByTarget[record.TargetID] = record.Status
	}
	assert.Equal(t, recorder.StatusSuccess, statusByTarget[7])
	assert.Equal(t, recorder.StatusFailed, statusByTarget[8])
	assert.Equal(t, recorder.StatusSuccess, statusByTarget[9])
}

func TestFanoutRecordsKeywords(t *testing.T) {
	notifier := &mockNotifier{}
	records := recorder.NewMemoryStore(10)
	fanout := NewFanout(notifier, records)

	fanout.Deliver(context.Background(), 100, hitWith("beta", "alpha"), testMessage())

	saved, err := records.QueryRecords(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, []string{"alpha", "beta"}, saved[0].Keywords)
	assert.Equal(t, int64(100), saved[0].OwnerID)
	assert.Equal(t, int64(-200), saved[0].ChatID)
}

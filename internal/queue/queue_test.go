package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/models"
)

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *Queue) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	q := New(client, "occupancy:deadletter", zap.NewNop())
	return mr, q
}

func TestQueue_PublishRead_ImageKey(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx, "occupancy:images", "detector"))

	msg := models.ImageKeyMessage{
		Key:     "GOL_2000_2021-04-20____12___30___45.123456__00___00",
		GroupID: models.ImageGroupID,
	}
	_, err := q.PublishImageKey(ctx, "occupancy:images", msg)
	require.NoError(t, err)

	messages, err := q.Read(ctx, "occupancy:images", "detector", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	parsed, err := models.ParseImageKeyMessage(messages[0].Values)
	require.NoError(t, err)
	assert.Equal(t, msg.Key, parsed.Key)
	assert.Equal(t, models.ImageGroupID, parsed.GroupID)
}

func TestQueue_PublishRead_CountedImage(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx, "occupancy:counts", "writer"))

	msg := models.CountedImageMessage{
		Key:     "GOL_2000_2021-04-20____12___30___45.123456__00___00",
		Count:   3,
		GroupID: models.CountGroupID,
	}
	_, err := q.PublishCountedImage(ctx, "occupancy:counts", msg)
	require.NoError(t, err)

	messages, err := q.Read(ctx, "occupancy:counts", "writer", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// 线上以字符串属性传输
	assert.Equal(t, "3", messages[0].Values["count"])

	parsed, err := models.ParseCountedImageMessage(messages[0].Values)
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.Count)
}

func TestQueue_FIFOOrder(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx, "occupancy:images", "detector"))

	keys := []string{"A_1_ts", "B_2_ts", "C_3_ts"}
	for _, k := range keys {
		_, err := q.PublishImageKey(ctx, "occupancy:images", models.ImageKeyMessage{Key: k, GroupID: models.ImageGroupID})
		require.NoError(t, err)
	}

	messages, err := q.Read(ctx, "occupancy:images", "detector", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, k := range keys {
		assert.Equal(t, k, messages[i].Values["key"])
	}
}

func TestQueue_AckAndPending(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx, "occupancy:images", "detector"))

	_, err := q.PublishImageKey(ctx, "occupancy:images", models.ImageKeyMessage{Key: "GOL_2000_ts", GroupID: models.ImageGroupID})
	require.NoError(t, err)

	messages, err := q.Read(ctx, "occupancy:images", "detector", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// 未确认的消息可通过 "0" 取回
	pending, err := q.Read(ctx, "occupancy:images", "detector", "c1", "0", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, q.Ack(ctx, "occupancy:images", "detector", messages[0].ID))

	pending, err = q.Read(ctx, "occupancy:images", "detector", "c1", "0", 10, time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueue_DeadLetter(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx, "occupancy:counts", "writer"))
	require.NoError(t, q.EnsureGroup(ctx, "occupancy:deadletter", "inspector"))

	// 畸形消息：count 非数字
	_, err := q.Publish(ctx, "occupancy:counts", map[string]interface{}{
		"key":      "GOL_2000_ts",
		"count":    "not-a-number",
		"group_id": models.CountGroupID,
	})
	require.NoError(t, err)

	messages, err := q.Read(ctx, "occupancy:counts", "writer", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	_, err = models.ParseCountedImageMessage(messages[0].Values)
	require.Error(t, err)

	require.NoError(t, q.DeadLetter(ctx, messages[0], "writer", err.Error()))

	// 原消息已确认
	pending, err := q.Read(ctx, "occupancy:counts", "writer", "c1", "0", 10, time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 死信流里有副本
	dead, err := q.Read(ctx, "occupancy:deadletter", "inspector", "c1", ">", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "occupancy:counts", dead[0].Values["source_stream"])
	assert.Equal(t, "GOL_2000_ts", dead[0].Values["payload_key"])
}

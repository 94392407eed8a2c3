package task

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisRegistry(t *testing.T, ttl time.Duration) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRegistry(client, RedisConfig{Prefix: "test:", TTL: ttl}), mr
}

func TestRedisRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedisRegistry(t, time.Hour)

	tk := New(Request{URL: "https://arxiv.org/abs/2312.00752", IllustrationCount: Count(3)})
	require.NoError(t, r.Create(ctx, tk))
	assert.ErrorIs(t, r.Create(ctx, tk), ErrExists)

	got, err := r.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
	require.NotNil(t, got.Request.IllustrationCount)
	assert.Equal(t, 3, *got.Request.IllustrationCount)

	_, err = r.UpdateStage(ctx, tk.ID, Update{Status: StatusRunning, Stage: StageAcquire})
	require.NoError(t, err)
	_, err = r.UpdateStage(ctx, tk.ID, Update{Stage: StageExtract, Progress: 15})
	require.NoError(t, err)

	_, err = r.UpdateStage(ctx, tk.ID, Update{Progress: 10})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	html := "/api/paper/download/x/article.html"
	final, err := r.UpdateStage(ctx, tk.ID, Update{
		Status:   StatusCompleted,
		Progress: 100,
		Result:   &Result{HTMLURL: &html, Degradations: []string{"PDF export unavailable, HTML only"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Nil(t, final.Result.PDFURL)

	got, err = r.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, html, *got.Result.HTMLURL)

	assert.Greater(t, mr.TTL("test:task:"+tk.ID), time.Duration(0), "terminal snapshot should carry the retention ttl")
}

func TestRedisRegistry_ListDelete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedisRegistry(t, 0)

	var ids []string
	for i := 0; i < 3; i++ {
		tk := New(Request{URL: "u"})
		tk.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, r.Create(ctx, tk))
		ids = append(ids, tk.ID)
	}

	list, err := r.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID, "newest first")

	mr.Del("test:task:" + ids[1])
	list, err = r.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2, "expired snapshots are skipped")

	require.NoError(t, r.Delete(ctx, ids[0]))
	_, err = r.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converterservice/internal/worker"
)

func TestAsynqEnqueuer_RefreshIsUnique(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	opt := asynq.RedisClientOpt{Addr: testAsynqRDB.Options().Addr, DB: testAsynqRDB.Options().DB}
	client := asynq.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = inspector.Close() })

	e := worker.NewAsynqEnqueuer(client, 3, 30*time.Second)

	id, err := e.EnqueueRefresh(ctx)
	require.NoError(t, err)

	_, err = e.EnqueueRefresh(ctx)
	assert.ErrorIs(t, err, worker.ErrRefreshPending)

	info, err := inspector.GetTaskInfo("default", id)
	require.NoError(t, err)
	assert.Equal(t, worker.TaskTypeRefreshRates, info.Type)
	assert.JSONEq(t, `{"force":true}`, string(info.Payload))
	assert.Equal(t, 3, info.MaxRetry)
}

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/pkg/types"
)

func testKey(identity string) Key {
	return Key{Kind: "trigger", Identity: identity, Contract: "aabb", Time: 1700000000}
}

func okOutcome() *types.Outcome {
	return types.OutcomeFromEffect(&types.ChainEffect{Logs: []string{"ok"}})
}

func TestExecute_SingleFlight(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	var executions int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) *types.Outcome {
		atomic.AddInt64(&executions, 1)
		close(started)
		<-release
		return okOutcome()
	}

	var wg sync.WaitGroup
	outcomes := make([]*types.Outcome, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[0] = c.Execute(context.Background(), testKey("oracle"), time.Second, compute)
	}()

	// 等拥有者就位后再发起相同调用
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[1] = c.Execute(context.Background(), testKey("oracle"), time.Second, func(ctx context.Context) *types.Outcome {
			atomic.AddInt64(&executions, 1)
			return okOutcome()
		})
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&executions), "并发相同调用只执行一次")
	require.True(t, outcomes[0].OK())
	require.True(t, outcomes[1].OK())
	assert.Equal(t, outcomes[0], outcomes[1])
}

func TestExecute_DistinctKeys(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	var executions int64
	compute := func(ctx context.Context) *types.Outcome {
		atomic.AddInt64(&executions, 1)
		return okOutcome()
	}

	c.Execute(context.Background(), testKey("oracle"), time.Second, compute)
	c.Execute(context.Background(), testKey("transaction:vote/1"), time.Second, compute)

	assert.Equal(t, int64(2), executions)
}

func TestExecute_CachedOutcomeReused(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	var executions int64
	compute := func(ctx context.Context) *types.Outcome {
		atomic.AddInt64(&executions, 1)
		return okOutcome()
	}

	first := c.Execute(context.Background(), testKey("oracle"), time.Second, compute)
	second := c.Execute(context.Background(), testKey("oracle"), time.Second, compute)

	assert.Equal(t, int64(1), executions)
	assert.Equal(t, first, second)
}

func TestExecute_TimeoutNotCached(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	outcome := c.Execute(context.Background(), testKey("oracle"), 20*time.Millisecond, func(ctx context.Context) *types.Outcome {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return okOutcome()
	})

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureExecutionTimeout, outcome.Failure.Kind)
	// 超时条目被丢弃，后续调用重新执行
	assert.Equal(t, 0, c.Len())

	retried := c.Execute(context.Background(), testKey("oracle"), time.Second, func(ctx context.Context) *types.Outcome {
		return okOutcome()
	})
	assert.True(t, retried.OK())
}

func TestExecute_CapacityPressure(t *testing.T) {
	t.Run("最旧的已完结条目被驱逐让位", func(t *testing.T) {
		c := New(time.Minute, 1, &testutil.MockLogger{})
		defer c.Close()

		c.Execute(context.Background(), testKey("oracle"), time.Second, func(ctx context.Context) *types.Outcome {
			return okOutcome()
		})
		require.Equal(t, 1, c.Len())

		var executions int64
		compute := func(ctx context.Context) *types.Outcome {
			atomic.AddInt64(&executions, 1)
			return okOutcome()
		}

		outcome := c.Execute(context.Background(), testKey("transaction:vote/1"), time.Second, compute)
		assert.True(t, outcome.OK())
		assert.Equal(t, 1, c.Len())

		// 让位后的新条目承载去重职责，重复调用命中缓存
		c.Execute(context.Background(), testKey("transaction:vote/1"), time.Second, compute)
		assert.Equal(t, int64(1), atomic.LoadInt64(&executions))
	})

	t.Run("全部条目执行中时降级为直接执行", func(t *testing.T) {
		c := New(time.Minute, 1, &testutil.MockLogger{})
		defer c.Close()

		started := make(chan struct{})
		release := make(chan struct{})
		go c.Execute(context.Background(), testKey("oracle"), time.Second, func(ctx context.Context) *types.Outcome {
			close(started)
			<-release
			return okOutcome()
		})
		<-started

		// 执行中条目不可驱逐：新键绕过缓存直接执行，不挤占去重条目
		outcome := c.Execute(context.Background(), testKey("transaction:vote/1"), time.Second, func(ctx context.Context) *types.Outcome {
			return okOutcome()
		})
		assert.True(t, outcome.OK())
		assert.Equal(t, 1, c.Len())

		close(release)
	})
}

func TestExecute_TTLExpiry(t *testing.T) {
	c := New(30*time.Millisecond, 100, &testutil.MockLogger{})
	defer c.Close()

	var executions int64
	compute := func(ctx context.Context) *types.Outcome {
		atomic.AddInt64(&executions, 1)
		return okOutcome()
	}

	c.Execute(context.Background(), testKey("oracle"), time.Second, compute)
	time.Sleep(60 * time.Millisecond)
	c.Execute(context.Background(), testKey("oracle"), time.Second, compute)

	assert.Equal(t, int64(2), executions, "条目过期后重新执行")
}

func TestExecuteUncached(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	t.Run("正常结局直通", func(t *testing.T) {
		outcome := c.ExecuteUncached(context.Background(), time.Second, func(ctx context.Context) *types.Outcome {
			return okOutcome()
		})
		assert.True(t, outcome.OK())
		assert.Equal(t, 0, c.Len(), "不缓存路径绝不写入条目")
	})

	t.Run("nil结局收敛为execution_raise", func(t *testing.T) {
		outcome := c.ExecuteUncached(context.Background(), time.Second, func(ctx context.Context) *types.Outcome {
			return nil
		})
		require.False(t, outcome.OK())
		assert.Equal(t, types.FailureExecutionRaise, outcome.Failure.Kind)
	})

	t.Run("截止时间到达降级为execution_timeout", func(t *testing.T) {
		outcome := c.ExecuteUncached(context.Background(), 20*time.Millisecond, func(ctx context.Context) *types.Outcome {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return okOutcome()
		})
		require.False(t, outcome.OK())
		assert.Equal(t, types.FailureExecutionTimeout, outcome.Failure.Kind)
	})
}

func TestAwait_CallerCancellation(t *testing.T) {
	c := New(time.Minute, 100, &testutil.MockLogger{})
	defer c.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go c.Execute(context.Background(), testKey("oracle"), time.Minute, func(ctx context.Context) *types.Outcome {
		close(started)
		<-release
		return okOutcome()
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := c.Execute(ctx, testKey("oracle"), time.Minute, func(ctx context.Context) *types.Outcome {
		t.Fatal("等待方不应重复执行")
		return nil
	})

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureExecutionTimeout, outcome.Failure.Kind)
}

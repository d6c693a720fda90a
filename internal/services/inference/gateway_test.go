package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

type fakeBackend struct {
	describe func(ctx context.Context, req *models.InferenceRequest) (string, error)
}

func (f *fakeBackend) Describe(ctx context.Context, req *models.InferenceRequest) (string, error) {
	return f.describe(ctx, req)
}

func gatewayConfig() *config.Config {
	cfg := config.Load()
	cfg.InferenceWorkers = 1
	cfg.InferenceQueueSize = 2
	cfg.InferenceTimeout = 100 * time.Millisecond
	cfg.InferenceCacheSize = 8
	cfg.InferenceHashDistance = 0
	return cfg
}

func req(frameNum int64, hash uint64) *models.InferenceRequest {
	return &models.InferenceRequest{
		CameraID:  "cam-0",
		FrameNum:  frameNum,
		Timestamp: time.Now(),
		Hash:      hash,
	}
}

func waitResult(t *testing.T, g *Gateway) *models.InferenceResult {
	t.Helper()
	select {
	case r := <-g.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inference result")
		return nil
	}
}

func TestGatewayDeliversDescription(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		return "a person near the door", nil
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x11)))

	r := waitResult(t, g)
	assert.Equal(t, int64(1), r.FrameNum)
	assert.Equal(t, "a person near the door", r.Description)
	assert.False(t, r.TimedOut)
	assert.False(t, r.Cached)
}

func TestGatewayDeadlineYieldsFallback(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x11)))

	r := waitResult(t, g)
	assert.True(t, r.TimedOut)
	assert.Equal(t, neutralDescription, r.Description)
	assert.Equal(t, int64(1), g.Stats().TimedOut)
}

func TestGatewayBackendErrorYieldsFallback(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x11)))

	r := waitResult(t, g)
	assert.Equal(t, neutralDescription, r.Description)
	assert.True(t, r.TimedOut)
}

func TestGatewayTagsLateResults(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		if r.FrameNum == 1 {
			<-release
		}
		return "scene", nil
	}}
	cfg := gatewayConfig()
	cfg.InferenceTimeout = 2 * time.Second
	g := NewGateway(cfg, backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x11)))
	require.NoError(t, g.Submit(req(2, 0x22)))
	close(release)

	r1 := waitResult(t, g)
	assert.Equal(t, int64(1), r1.FrameNum)
	assert.True(t, r1.ArrivedLate, "frame 1 finished after frame 2 was submitted")

	r2 := waitResult(t, g)
	assert.Equal(t, int64(2), r2.FrameNum)
	assert.False(t, r2.ArrivedLate)
}

func TestGatewayCacheHitSkipsBackend(t *testing.T) {
	calls := 0
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		calls++
		return "a parked car", nil
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x77)))
	first := waitResult(t, g)
	require.False(t, first.Cached)

	require.NoError(t, g.Submit(req(2, 0x77)))
	second := waitResult(t, g)
	assert.True(t, second.Cached)
	assert.Equal(t, "a parked car", second.Description)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), g.Stats().CacheHits)
}

func TestGatewayRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		<-block
		return "scene", nil
	}}
	cfg := gatewayConfig()
	cfg.InferenceTimeout = 2 * time.Second
	g := NewGateway(cfg, backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	// One in flight plus a full queue of two
	require.NoError(t, g.Submit(req(1, 0x01)))
	time.Sleep(50 * time.Millisecond) // let the worker pick up frame 1
	require.NoError(t, g.Submit(req(2, 0x02)))
	require.NoError(t, g.Submit(req(3, 0x03)))

	err := g.Submit(req(4, 0x04))
	assert.ErrorIs(t, err, models.ErrQueueFull)
	assert.Equal(t, int64(1), g.Stats().Rejected)

	close(block)
}

func TestGatewayWrappedTimeoutYieldsFallback(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		return "", fmt.Errorf("%w: Post /api/generate: context deadline exceeded", models.ErrInferenceTimeout)
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	require.NoError(t, g.Submit(req(1, 0x11)))

	r := waitResult(t, g)
	assert.True(t, r.TimedOut)
	assert.Equal(t, neutralDescription, r.Description)
	assert.Equal(t, int64(1), g.Stats().TimedOut)
}

func TestGatewayDrainStopsIntake(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		return "scene", nil
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	g.Drain(time.Second)
	assert.ErrorIs(t, g.Submit(req(1, 0x11)), models.ErrQueueFull)
}

func TestGatewayDrainRacesSubmitters(t *testing.T) {
	backend := &fakeBackend{describe: func(ctx context.Context, r *models.InferenceRequest) (string, error) {
		return "scene", nil
	}}
	g := NewGateway(gatewayConfig(), backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for j := int64(0); j < 200; j++ {
				n := base*1000 + j
				_ = g.Submit(req(n, uint64(n)))
			}
		}(int64(i))
	}

	g.Drain(time.Second)
	wg.Wait()

	assert.ErrorIs(t, g.Submit(req(9999, 0x9999)), models.ErrQueueFull)
	g.Drain(time.Second) // second drain is a no-op, not a double close
}

package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// Fallback description attached when the backend misses its deadline
const neutralDescription = "no description available"

// Gateway runs inference on a bounded worker pool so a slow or dead
// vision-language backend can never stall the analysis loop. Every
// submitted frame gets exactly one result: a real description, a cache
// hit, or the neutral fallback with timed_out set.
type Gateway struct {
	cfg     *config.Config
	backend Backend
	cache   *DescriptionCache

	queue   chan *models.InferenceRequest
	results chan *models.InferenceResult

	// Orders queue sends against the close in Drain
	mu        sync.Mutex
	accepting atomic.Bool
	// Highest frame number ever submitted; results below it arrived late
	highestSubmitted atomic.Int64

	submitted   atomic.Int64
	completed   atomic.Int64
	timedOut    atomic.Int64
	arrivedLate atomic.Int64
	cacheHits   atomic.Int64
	rejected    atomic.Int64
	inFlight    atomic.Int64

	wg sync.WaitGroup
}

// NewGateway creates an inference gateway over the given backend
func NewGateway(cfg *config.Config, backend Backend) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		backend: backend,
		cache:   NewDescriptionCache(cfg.InferenceCacheSize, cfg.InferenceHashDistance),
		queue:   make(chan *models.InferenceRequest, cfg.InferenceQueueSize),
		results: make(chan *models.InferenceResult, cfg.InferenceQueueSize),
	}
	g.accepting.Store(true)
	return g
}

// Results returns the stream of inference results
func (g *Gateway) Results() <-chan *models.InferenceResult {
	return g.results
}

// Start launches the worker pool
func (g *Gateway) Start(ctx context.Context) {
	for i := 0; i < g.cfg.InferenceWorkers; i++ {
		g.wg.Add(1)
		go g.worker(ctx, i)
	}
	log.Info().
		Int("workers", g.cfg.InferenceWorkers).
		Int("queue_size", g.cfg.InferenceQueueSize).
		Dur("timeout", g.cfg.InferenceTimeout).
		Msg("Inference gateway started")
}

// Submit enqueues a frame without blocking. A full queue rejects the frame
// immediately; the pipeline keeps going and the next gated frame tries again.
func (g *Gateway) Submit(req *models.InferenceRequest) error {
	if !g.accepting.Load() {
		return models.ErrQueueFull
	}

	// Cache answers synchronously, skipping the pool entirely
	if desc, ok := g.cache.Lookup(req.Hash); ok {
		g.cacheHits.Add(1)
		g.submitted.Add(1)
		g.bumpHighest(req.FrameNum)
		g.emit(&models.InferenceResult{
			CameraID:    req.CameraID,
			FrameNum:    req.FrameNum,
			Description: desc,
			Cached:      true,
		})
		return nil
	}

	req.EnqueuedAt = time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.accepting.Load() {
		return models.ErrQueueFull
	}
	select {
	case g.queue <- req:
		g.submitted.Add(1)
		g.bumpHighest(req.FrameNum)
		return nil
	default:
		g.rejected.Add(1)
		return models.ErrQueueFull
	}
}

func (g *Gateway) worker(ctx context.Context, id int) {
	defer g.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("worker", id).Interface("panic", r).Msg("Inference worker panicked")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-g.queue:
			if !ok {
				return
			}
			g.inFlight.Add(1)
			g.process(ctx, req)
			g.inFlight.Add(-1)
		}
	}
}

// process runs one request against the backend under its deadline
func (g *Gateway) process(ctx context.Context, req *models.InferenceRequest) {
	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.InferenceTimeout)
	defer cancel()

	started := time.Now()
	desc, err := g.backend.Describe(reqCtx, req)
	elapsed := time.Since(started)

	result := &models.InferenceResult{
		CameraID: req.CameraID,
		FrameNum: req.FrameNum,
		Elapsed:  elapsed,
	}

	switch {
	case err == nil:
		result.Description = desc
		g.cache.Add(req.Hash, desc)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrInferenceTimeout):
		result.Description = neutralDescription
		result.TimedOut = true
		g.timedOut.Add(1)
		log.Warn().
			Int64("frame_num", req.FrameNum).
			Dur("elapsed", elapsed).
			Msg("Inference deadline exceeded, returning fallback")
	default:
		result.Description = neutralDescription
		result.TimedOut = true
		g.timedOut.Add(1)
		log.Warn().
			Int64("frame_num", req.FrameNum).
			Err(err).
			Msg("Inference backend error, returning fallback")
	}

	if g.highestSubmitted.Load() > req.FrameNum {
		result.ArrivedLate = true
		g.arrivedLate.Add(1)
	}

	g.completed.Add(1)
	g.emit(result)
}

// emit delivers a result, dropping the oldest waiting one if nobody reads
func (g *Gateway) emit(result *models.InferenceResult) {
	select {
	case g.results <- result:
	default:
		select {
		case <-g.results:
		default:
		}
		select {
		case g.results <- result:
		default:
		}
	}
}

func (g *Gateway) bumpHighest(frameNum int64) {
	for {
		cur := g.highestSubmitted.Load()
		if frameNum <= cur || g.highestSubmitted.CompareAndSwap(cur, frameNum) {
			return
		}
	}
}

// Drain stops accepting new frames and waits up to grace for in-flight
// requests to finish
func (g *Gateway) Drain(grace time.Duration) {
	g.mu.Lock()
	wasAccepting := g.accepting.Load()
	g.accepting.Store(false)
	if wasAccepting {
		close(g.queue)
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Inference gateway drained")
	case <-time.After(grace):
		log.Warn().
			Int64("in_flight", g.inFlight.Load()).
			Msg("Inference drain grace expired with requests in flight")
	}
}

// Stats returns the gateway counters
func (g *Gateway) Stats() models.GatewayStats {
	return models.GatewayStats{
		Submitted:   g.submitted.Load(),
		Completed:   g.completed.Load(),
		TimedOut:    g.timedOut.Load(),
		ArrivedLate: g.arrivedLate.Load(),
		CacheHits:   g.cacheHits.Load(),
		Rejected:    g.rejected.Load(),
		InFlight:    g.inFlight.Load(),
	}
}

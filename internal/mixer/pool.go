package mixer

import (
	"fmt"
	"time"

	"voicedriver/internal/input"
	"voicedriver/internal/pool"
	"voicedriver/internal/trackapi"
)

// Blocking-pool sizing mirrors rusty_pool's defaults in
// original_source's mixer/pool.rs: up to 64 concurrent workers, each
// reaped after 5s idle.
const (
	poolMaxWorkers = 64
	poolIdleTTL    = 5 * time.Second
)

// BlockingPool runs container-probe, decode-setup and seek work off
// the mixer's real-time thread, delivering each result on a one-shot
// channel the mixer polls without blocking. Grounded on
// original_source's BlockyTaskPool (mixer/pool.rs); the underlying
// bounded-goroutine executor lives in internal/pool.
type BlockingPool struct {
	pool *pool.Pool
}

// NewBlockingPool returns a pool ready to accept work.
func NewBlockingPool() *BlockingPool {
	return &BlockingPool{pool: pool.New(poolMaxWorkers, poolIdleTTL)}
}

// Prepare opens src and parses its container on the pool, delivering
// the resulting Parsed input (or error) on the returned channel.
// Mirrors original_source's "create" request.
func (b *BlockingPool) Prepare(src trackapi.InputSource) <-chan prepareResult {
	result := make(chan prepareResult, 1)
	b.pool.Submit(func() {
		reader, err := src.Reader()
		if err != nil {
			result <- prepareResult{err: fmt.Errorf("mixer: opening input: %w", err)}
			return
		}
		defer reader.Close()

		parsed, err := input.Open(reader)
		result <- prepareResult{parsed: parsed, err: err}
	})
	return result
}

// Seek re-points an already-ready track's input at pos. If the
// underlying Decoder supports direct seeking, that's used in place.
// Otherwise the source is recreated from scratch and discarded
// forward to pos by decoding and throwing away frames — the only
// option for a container with no native random access. Mirrors
// original_source's "seek" request.
func (b *BlockingPool) Seek(src trackapi.InputSource, parsed *input.Parsed, pos time.Duration) <-chan prepareResult {
	result := make(chan prepareResult, 1)

	if seeker, ok := parsed.Decoder.(input.Seeker); ok {
		b.pool.Submit(func() {
			if err := seeker.SeekTo(pos); err != nil {
				result <- prepareResult{err: fmt.Errorf("mixer: seek: %w", err)}
				return
			}
			result <- prepareResult{parsed: parsed}
		})
		return result
	}

	b.pool.Submit(func() {
		fresh, err := src.Recreate()
		if err != nil {
			result <- prepareResult{err: fmt.Errorf("mixer: recreate for seek: %w", err)}
			return
		}
		reader, err := fresh.Reader()
		if err != nil {
			result <- prepareResult{err: fmt.Errorf("mixer: opening recreated input: %w", err)}
			return
		}
		defer reader.Close()

		reparsed, err := input.Open(reader)
		if err != nil {
			result <- prepareResult{err: fmt.Errorf("mixer: reparsing recreated input: %w", err)}
			return
		}

		engine, err := input.NewEngine(reparsed)
		if err != nil {
			result <- prepareResult{err: err}
			return
		}
		if err := discardTo(engine, pos); err != nil {
			result <- prepareResult{err: fmt.Errorf("mixer: discarding to seek position: %w", err)}
			return
		}
		result <- prepareResult{parsed: reparsed}
	})
	return result
}

// discardTo decodes and throws away frames until engine has consumed
// approximately pos of audio, for containers whose Decoder can't seek
// directly.
func discardTo(engine *input.Engine, pos time.Duration) error {
	remaining := int(pos.Seconds() * float64(input.FrameSamples) * 50) // FrameSamples per 20ms tick, 50 ticks/s
	scratch := make([]float32, input.FrameSamples)
	for remaining > 0 {
		n, err := engine.Next(scratch)
		remaining -= n
		if err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the pool down, waiting for in-flight work to finish.
func (b *BlockingPool) Close() { b.pool.Close() }

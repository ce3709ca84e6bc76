package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"chromestream/capture"
	"chromestream/config"
	"chromestream/diag"
	"chromestream/event"
	"chromestream/logger"
	"chromestream/stream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	out, err := os.Create(cfg.OutputFileName)
	if err != nil {
		logger.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()

	mode := stream.ModeInline
	if cfg.Mode == "batch" {
		mode = stream.ModeBatch
	}
	eng, guard, err := stream.New(func() io.Writer { return out }, stream.Options{
		Mode:            mode,
		BatchSize:       cfg.BatchSize,
		ProcessMetadata: cfg.ProcessMetadata,
		Mirror: &stream.MirrorOptions{
			Endpoint:    cfg.OtelEndpoint,
			FromEnv:     cfg.OtelFromEnv,
			Headers:     cfg.OtelHeaders,
			ServiceName: cfg.OtelServiceName,
			Timeout:     cfg.OtelTimeout,
		},
	})
	if err != nil {
		logger.Fatalf("Failed to initialize trace engine: %v", err)
	}

	layer := capture.New(eng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	controller := diag.NewController(diag.Options{
		StallThreshold: cfg.DiagStallThreshold,
		Dir:            cfg.DiagDir,
		GoroutineLeak:  cfg.DiagGoroutineLeak,
		WrittenCountFn: eng.WrittenCount,
	})
	controller.Start(ctx)

	totalSpans := int64(cfg.Workers) * int64(cfg.SpansPerWorker)
	var bar *progressbar.ProgressBar
	if cfg.Progress && totalSpans > 0 {
		bar = progressbar.Default(totalSpans, "generating spans")
	}

	var limiter *rate.Limiter
	if cfg.MaxEventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSecond), cfg.MaxEventsPerSecond)
	}

	startTime := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, layer, cfg, worker, limiter, bar)
		}(w)
	}
	wg.Wait()

	controller.Close()
	if bar != nil {
		bar.Finish()
	}

	if err := guard.Close(); err != nil {
		logger.Fatalf("Trace stream failed: %v", err)
	}

	elapsed := time.Since(startTime)
	logger.Infof("Wrote %d records to %s in %s", eng.WrittenCount(), cfg.OutputFileName, elapsed.Round(time.Millisecond))
	if be, ok := eng.(*stream.BatchEngine); ok && be.DroppedCount() > 0 {
		logger.Warnf("Dropped %d records after sink failure", be.DroppedCount())
	}
	if open := layer.OpenSpans(); open > 0 {
		logger.Warnf("%d spans were still open at shutdown", open)
	}
}

// runWorker drives full span lifecycles through the capture layer: create,
// enter, free events inside the span, exit and close. A share of spans are
// produced as async spans with a stable id derived from their label.
func runWorker(ctx context.Context, layer *capture.Layer, cfg *config.Config, worker int, limiter *rate.Limiter, bar *progressbar.ProgressBar) {
	rng := rand.New(rand.NewSource(int64(worker) + 1))

	for seq := 0; seq < cfg.SpansPerWorker; seq++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		id := uint64(worker)<<32 | uint64(seq)
		label := fmt.Sprintf("worker-%d/span-%d", worker, seq)
		attrs := []event.Attr{
			{Key: "name", Value: label},
			{Key: "cat", Value: "tracegen"},
		}
		if rng.Float64() < cfg.AsyncShare {
			attrs = append(attrs,
				event.Attr{Key: "event", Value: event.DirectiveAsync},
				event.Attr{Key: "id", Value: event.DeriveID(label)},
			)
		}

		layer.OnNewSpan(id, attrs)
		layer.OnEnter(id)
		for e := 0; e < cfg.EventsPerSpan; e++ {
			layer.OnEvent([]event.Attr{
				{Key: "name", Value: fmt.Sprintf("%s/event-%d", label, e)},
				{Key: "cat", Value: "tracegen"},
			})
		}
		layer.OnExit(id)
		layer.OnClose(id)

		if bar != nil {
			bar.Add(1)
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	handleSignalEvent(cancel, sigChan)
}

func handleSignalEvent(cancel context.CancelFunc, sigChan chan os.Signal) {
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")
	cancel()
}

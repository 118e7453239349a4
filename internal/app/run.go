package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/imageburst/internal/ctxlog"
	"github.com/specialistvlad/imageburst/internal/fsutil"
	"github.com/specialistvlad/imageburst/internal/image"
	"github.com/specialistvlad/imageburst/internal/upload"
	"golang.org/x/sync/errgroup"
)

// Run collects the images, sends them as one batch (repeated if configured)
// and closes the connection. The health server, when enabled, runs for the
// duration of the call.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthCheckServer(gctx, a.config.HealthcheckPort); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			return a.closeHealthCheckServer(ctx)
		})
	}

	g.Go(func() error {
		// Stops the health server once the upload is over.
		defer cancel()
		return a.upload(gctx)
	})

	err := g.Wait()
	a.logger.Debug("App.Run method finished.", "error", err)
	return err
}

func (a *App) upload(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	handles, err := a.collectImages(ctx)
	if err != nil {
		return err
	}
	defer image.ReleaseAll(handles)

	defer func() {
		if err := a.manager.Shutdown(); err != nil {
			logger.Warn("Closing connection failed.", "error", err)
		}
		a.session.Close()
	}()

	logger.Info("🚀 Uploading images...", "count", len(handles), "url", a.config.URL, "transport", a.config.Transport, "repeat", a.config.Repeat)
	for i := range a.config.Repeat {
		batch := upload.NewBatch(handles...)
		if err := a.session.Submit(ctx, batch); err != nil {
			return err
		}
		logger.Info("Batch uploaded.", "batch_id", batch.ID, "round", i+1, "images", batch.Len(), "bytes", batch.Size())
	}

	if wait := a.config.WaitAcks; wait > 0 {
		logger.Info("Waiting for acknowledgements.", "duration", wait)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	stats := a.session.Stats()
	logger.Info("🏁 Upload finished.", "batches", stats.Completed, "frames", stats.Frames, "bytes", stats.Bytes, "acks", stats.Acks)
	return nil
}

// collectImages finds every accepted file under the configured paths, in
// path order, and opens a handle for each.
func (a *App) collectImages(ctx context.Context) ([]image.Handle, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFiles(a.fs, a.config.Paths, a.accept.Matches)
	if err != nil {
		return nil, fmt.Errorf("failed to find images: %w", err)
	}
	logger.Debug("Discovered image files.", "count", len(files), "accept", []string(a.accept))

	handles := make([]image.Handle, 0, len(files))
	for _, f := range files {
		h, err := image.NewFileHandle(a.fs, f)
		if err != nil {
			image.ReleaseAll(handles)
			return nil, err
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 {
		logger.Warn("No images matched.", "paths", a.config.Paths, "accept", []string(a.accept))
	}
	return handles, nil
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vburojevic/presence/internal/monitor"
	presence "github.com/vburojevic/presence/internal/signal"
	"github.com/vburojevic/presence/internal/server"
)

// ServeCmd runs the tracker behind an HTTP API
type ServeCmd struct {
	Addr string `default:"${config_addr}" help:"Listen address"`
}

// Run executes the serve command
func (c *ServeCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	cfg := globals.config()
	logger := globals.Logger()
	samples := make(chan presence.Sample, 64)
	mon := monitor.New(st.history, st.detections, monitor.Options{
		TickInterval: cfg.TickInterval(),
		Logger:       logger,
	})
	srv := server.New(mon, samples, server.Options{
		Addr:           c.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = mon.Run(ctx, samples)
	}()

	globals.info("Serving on http://%s (POST /api/v1/presence or ws://%s/ws/presence)", c.Addr, c.Addr)
	err = srv.Run(ctx)
	cancel()
	<-mon.Done()
	if err != nil {
		return outputErrorCommon(globals, "SERVER_FAILED", err.Error(), "is another process listening on "+c.Addr+"?")
	}
	return nil
}

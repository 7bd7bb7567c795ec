package cli

import (
	"context"
	"errors"

	"github.com/vburojevic/presence/internal/detections"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/storage"
)

// stores bundles the backend with both collections loaded from it.
type stores struct {
	kv         storage.KV
	history    *history.Store
	detections *detections.Log
}

// openStores opens the configured backend and loads both collections.
// Missing or corrupt blobs load as empty.
func openStores(ctx context.Context, globals *Globals) (*stores, error) {
	cfg := globals.config()
	kv, err := storage.Open(globals.Storage, globals.StoragePath)
	if err != nil {
		return nil, err
	}
	kv = storage.WithRetry(kv, cfg.Storage.Retries, cfg.RetryInterval())

	logger := globals.Logger()
	s := &stores{
		kv: kv,
		history: history.NewStore(kv,
			history.WithLogger(logger),
			history.WithMaxSessions(cfg.Tracker.MaxSessions),
		),
		detections: detections.NewLog(kv, logger),
	}
	n := s.history.Load(ctx)
	m := s.detections.Load(ctx)
	globals.Debug("loaded %d sessions and %d detections from %s storage", n, m, driverName(globals.Storage))
	return s, nil
}

// Close releases the backend
func (s *stores) Close() error {
	if s == nil || s.kv == nil {
		return nil
	}
	return s.kv.Close()
}

// storageDir returns the directory watched by --follow. Only the file driver
// has one.
func storageDir(globals *Globals) (string, error) {
	if globals.Storage != storage.DriverFile && globals.Storage != "" {
		return "", errors.New("follow is only supported with file storage")
	}
	f, err := storage.NewFile(globals.StoragePath)
	if err != nil {
		return "", err
	}
	return f.Dir(), nil
}

func driverName(d string) string {
	if d == "" {
		return storage.DriverFile
	}
	return d
}

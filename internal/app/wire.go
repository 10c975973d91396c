package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rewired-gh/fisdef/internal/config"
	"github.com/rewired-gh/fisdef/internal/iaea"
	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/output"
	"github.com/rewired-gh/fisdef/internal/provider"
	"github.com/rewired-gh/fisdef/internal/storage"
	"github.com/rewired-gh/fisdef/internal/telegram"
)

const (
	FilePermissions os.FileMode = 0644
	DirPermissions  os.FileMode = 0755
)

// notifyTimeout bounds report delivery, which runs after the run context may
// already be cancelled.
const notifyTimeout = 30 * time.Second

// Notifier delivers run reports.
type Notifier interface {
	Send(ctx context.Context, r telegram.Report) error
}

// OpenProvider opens the offline dataset and, when fetching is enabled, the
// live client. The returned close function releases the dataset.
func OpenProvider(cfg *config.Config, m *metrics.Metrics) (*provider.Provider, func() error, error) {
	ds, err := storage.Open(cfg.Provider.DatasetPath, DirPermissions)
	if err != nil {
		return nil, nil, err
	}

	var fetcher provider.Fetcher
	if cfg.Data.Fetch {
		fetcher = iaea.NewClient(cfg.Provider.APIBaseURL, cfg.Provider.Timeout, cfg.Provider.MaxRetries, cfg.Provider.RetryDelayBase)
	}
	return provider.New(fetcher, ds, m), ds.Close, nil
}

// OpenSink returns the configured output sink.
func OpenSink(ctx context.Context, cfg *config.Config) (output.Sink, error) {
	switch cfg.Output.Sink {
	case "s3":
		s3cfg := cfg.Output.S3
		return output.NewS3Sink(ctx, output.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			KeyPrefix:       s3cfg.KeyPrefix,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			SessionToken:    s3cfg.SessionToken,
			PathStyle:       s3cfg.PathStyle,
		})
	case "fs", "":
		return output.NewFileSink(FilePermissions, DirPermissions), nil
	default:
		return nil, fmt.Errorf("unknown output sink %q", cfg.Output.Sink)
	}
}

// OpenNotifier returns the Telegram notifier, or nil when no bot token is
// configured or the client cannot be built.
func OpenNotifier(cfg *config.Config) Notifier {
	tg := cfg.Notify.Telegram
	if tg.BotToken == "" {
		return nil
	}
	client, err := telegram.NewClient(tg.BotToken, tg.ChatID, tg.APIEndpoint, tg.MaxRetries, tg.RetryDelayBase)
	if err != nil {
		logger.Warn("Run reports disabled: %v", err)
		return nil
	}
	return client
}

// Notify sends r through n. A nil notifier is a no-op; delivery failures are
// logged only.
func Notify(n Notifier, r telegram.Report) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := n.Send(ctx, r); err != nil {
		logger.Warn("Failed to send run report: %v", err)
		return
	}
	logger.Debug("Run report sent")
}

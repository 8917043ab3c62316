package backup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/notify"
)

// ProbeHealth fetches url and returns an error unless it answers 200 within
// timeout. A failed probe is reported through n.
func ProbeHealth(ctx context.Context, client *http.Client, url string, timeout time.Duration, n notify.Notifier, logger *zap.Logger) error {
	err := probe(ctx, client, url, timeout)
	if err == nil {
		logger.Info("health probe ok", zap.String("url", url))
		return nil
	}

	logger.Error("health probe failed", zap.String("url", url), zap.Error(err))
	if n != nil {
		msg := notify.Message{
			Subject: "Service unreachable",
			Body:    fmt.Sprintf("Health check of %s failed.\n\nError:\n%v", url, err),
		}
		if nerr := n.Notify(ctx, msg); nerr != nil {
			logger.Error("failed to send health alert", zap.Error(nerr))
		}
	}
	return err
}

func probe(ctx context.Context, client *http.Client, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

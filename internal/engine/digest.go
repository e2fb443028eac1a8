package engine

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aloqahq/aloqa/internal/registry"
)

// BuildDigest summarizes request activity for the admin. An empty
// string means there is nothing worth sending.
func BuildDigest(db *gorm.DB) (string, error) {
	stats, err := registry.StatsByUnit(db)
	if err != nil {
		return "", fmt.Errorf("engine: build digest: %w", err)
	}
	if len(stats) == 0 {
		return "", nil
	}
	return "Daily digest\n\n" + statsText(stats), nil
}

// runDigestScheduler fires the daily admin digest on a cron timer. It
// returns immediately when no cron expression is configured.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	expr := d.cfg.Digest.Cron
	if expr == "" {
		return
	}
	wait := nextCronDuration(expr)
	if wait == 0 {
		d.logger.Printf("engine: digest cron %q did not parse; digest disabled", expr)
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx)
			if wait := nextCronDuration(expr); wait > 0 {
				timer.Reset(wait)
			} else {
				return
			}
		}
	}
}

// fireDigest builds and sends one digest to the admin (best-effort).
func (d *Daemon) fireDigest(ctx context.Context) {
	text, err := BuildDigest(d.db)
	if err != nil {
		d.logger.Printf("engine: digest: %v", err)
		return
	}
	if text == "" {
		return
	}
	d.notifier.Notify(ctx, d.cfg.AdminChatID, text)
}

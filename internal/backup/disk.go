package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ecmcloud/ecm/internal/notify"
)

// DiskUsage is the capacity of the filesystem holding a path.
type DiskUsage struct {
	Path        string
	Total       uint64
	Free        uint64
	Used        uint64
	PercentFree float64
}

// Usage reports the filesystem capacity for path.
func Usage(path string) (DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	free := st.Bavail * bsize
	u := DiskUsage{Path: path, Total: total, Free: free, Used: total - st.Bfree*bsize}
	if total > 0 {
		u.PercentFree = float64(free) / float64(total) * 100
	}
	return u, nil
}

// CheckDisks reports every path whose free space is at or below
// warnPercent. When any are low an alert is sent. Paths that cannot be
// inspected are logged and skipped.
func CheckDisks(ctx context.Context, paths []string, warnPercent float64, n notify.Notifier, logger *zap.Logger) ([]DiskUsage, error) {
	var low []DiskUsage
	for _, p := range paths {
		u, err := Usage(p)
		if err != nil {
			logger.Warn("disk check failed", zap.String("path", p), zap.Error(err))
			continue
		}
		logger.Info("disk usage",
			zap.String("path", p),
			zap.String("free", humanize.Bytes(u.Free)),
			zap.Float64("percentFree", u.PercentFree),
		)
		if u.PercentFree <= warnPercent {
			low = append(low, u)
		}
	}
	if len(low) == 0 || n == nil {
		return low, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Free space is at or below %.0f%% on:\n\n", warnPercent)
	for _, u := range low {
		fmt.Fprintf(&b, "[%s]\n  total: %s\n  used:  %s\n  free:  %s (%.1f%%)\n\n",
			u.Path, humanize.Bytes(u.Total), humanize.Bytes(u.Used), humanize.Bytes(u.Free), u.PercentFree)
	}
	b.WriteString("Remove old snapshots or other unneeded files.")
	if err := n.Notify(ctx, notify.Message{Subject: "Low disk space", Body: b.String()}); err != nil {
		return low, fmt.Errorf("sending disk alert: %w", err)
	}
	return low, nil
}

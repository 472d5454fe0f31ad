package archive

import (
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/model"
)

const recordedAtLayout = "2006-01-02 15:04:05 -0700"

// ResolveRecordedAt formats the demo's recording date, falling back to the
// readme's timestamp when the member timestamp is implausible. Archive
// tools routinely mangle member times, so anything before the cutoff or in
// the future is treated as noise.
func ResolveRecordedAt(demoDate, txtDate time.Time, cfg model.DateConfig, log *zap.Logger) string {
	if plausible(demoDate, cfg.Cutoff) {
		return demoDate.Format(recordedAtLayout)
	}

	log.Warn("implausible demo timestamp", zap.Time("demo_date", demoDate))
	if cfg.CheckTextDate && !txtDate.IsZero() {
		if plausible(txtDate, cfg.Cutoff) {
			return txtDate.Format(recordedAtLayout)
		}
		log.Warn("implausible readme timestamp as well", zap.Time("txt_date", txtDate))
	}
	return model.NeedsAttention
}

func plausible(date time.Time, cutoff time.Time) bool {
	tomorrow := time.Now().Add(24 * time.Hour)
	return date.After(cutoff) && date.Before(tomorrow)
}

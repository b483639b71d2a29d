package scheduler

import (
	"github.com/robfig/cron/v3"

	"github.com/eyevinn/sgai-proxy/internal/telemetry"
)

// StartGCCron runs sweep on the given cron schedule (e.g. "@every 30s")
// until the returned cron.Cron is stopped. sweep is expected to close over
// the scheduler and live-edge tracker for the playlist(s) in play.
func StartGCCron(spec string, logger telemetry.Logger, sweep func()) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(spec, sweep)
	if err != nil {
		logger.Error("invalid scheduler GC cron spec", "spec", spec, "error", err.Error())
		return c
	}
	c.Start()
	return c
}

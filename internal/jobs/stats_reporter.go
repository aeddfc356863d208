package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"collabdocs/internal/metrics"
	"collabdocs/internal/models"
	"collabdocs/internal/utils"
)

// StatsSource is anything that can report live collaboration counts.
type StatsSource interface {
	Stats() models.Stats
}

// StatsReporterJob periodically logs coordinator counts and mirrors them into gauges.
type StatsReporterJob struct {
	source   StatsSource
	log      *utils.Logger
	schedule string
	cron     *cron.Cron
}

// NewStatsReporterJob creates the job. An empty schedule leaves it disabled.
func NewStatsReporterJob(source StatsSource, log *utils.Logger, schedule string) *StatsReporterJob {
	return &StatsReporterJob{
		source:   source,
		log:      log,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the job and starts the cron scheduler.
func (j *StatsReporterJob) Start() error {
	if j.schedule == "" {
		j.log.Info("stats reporter disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule stats reporter: %w", err)
	}
	j.cron.Start()
	j.log.Info("stats reporter started", "schedule", j.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running report to finish.
func (j *StatsReporterJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce takes one snapshot.
func (j *StatsReporterJob) RunOnce() models.Stats {
	s := j.source.Stats()
	metrics.SetGauges(s.Rooms, s.Documents)
	j.log.Info("collaboration stats",
		"connections", s.Connections,
		"users", s.Users,
		"rooms", s.Rooms,
		"documents", s.Documents,
	)
	return s
}

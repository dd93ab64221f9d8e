package service

import (
	"context"
	"sync"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"github.com/robfig/cron/v3"
)

// CronService is the service for the cron jobs
type CronService struct {
	cfg            *config.Config
	c              *cron.Cron
	sessionService *SessionService

	done     chan struct{}
	stopOnce sync.Once
}

// NewCronService creates a new CronService
func NewCronService(cfg *config.Config, sessionService *SessionService) *CronService {
	return &CronService{
		cfg:            cfg,
		c:              cron.New(),
		sessionService: sessionService,
		done:           make(chan struct{}),
	}
}

// Start starts the cron service
func (cs *CronService) Start() error {
	zaplogger.Info("Initializing CronService")

	// ------------------------------------------------------------
	// SCHEDULED jobs
	// ------------------------------------------------------------
	if err := cs.addScheduledJob("Session EVICT Job", cs.sessionEvictJob, cs.cfg.SessionSweepSchedule); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// STARTUP jobs
	// ------------------------------------------------------------
	// sessions left behind by a previous process in a shared store
	cs.addStartupJob("Session EVICT Job", cs.sessionEvictJob, 5*time.Second)

	cs.c.Start()
	return nil
}

// Stop cancels queued startup jobs, stops the scheduler and waits for running jobs.
// Calling it more than once is safe.
func (cs *CronService) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.done)
		<-cs.c.Stop().Done()
	})
}

// addStartupJob adds a startup job to the cron service
func (cs *CronService) addStartupJob(name string, job func(), delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-cs.done:
			zaplogger.Info("CANCELLED STARTUP job", zaplogger.Fields{
				"job": name,
			})
			return
		}
		zaplogger.Info("STARTED STARTUP job", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED STARTUP job", zaplogger.Fields{
			"job": name,
		})
	}()
	zaplogger.Info("QUEUED STARTUP job", zaplogger.Fields{
		"job": name,
	})
}

func (cs *CronService) addScheduledJob(name string, job func(), schedule string) error {
	_, err := cs.c.AddFunc(schedule, func() {
		zaplogger.Debug("STARTED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Debug("COMPLETED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
	})
	if err != nil {
		zaplogger.Error("FAILED TO QUEUE SCHEDULED JOB", zaplogger.Fields{
			"job":      name,
			"schedule": schedule,
			"error":    err.Error(),
		})
		return err
	}
	zaplogger.Info("QUEUED SCHEDULED job", zaplogger.Fields{
		"job":      name,
		"schedule": schedule,
	})
	return nil
}

// sessionEvictJob removes sessions idle for longer than the configured max age
func (cs *CronService) sessionEvictJob() {
	jobName := "Session EVICT Job"

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := cs.sessionService.EvictExpired(ctx)
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}
	remaining, err := cs.sessionService.Count(ctx)
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"evicted": removed,
			"error":   err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"evicted":   removed,
		"remaining": remaining,
	})
}

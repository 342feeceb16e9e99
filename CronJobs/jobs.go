package CronJobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"Beacon/TaskEngine"

	"github.com/robfig/cron/v3"
)

// OverdueChecker periodically sweeps assignments of past-due tasks into
// OVERDUE. Submitted and decided assignments are never touched.
type OverdueChecker struct {
	cronScheduler  *cron.Cron
	engine         *TaskEngine.Engine
	runImmediately bool
	jobID          cron.EntryID
}

func NewOverdueChecker(engine *TaskEngine.Engine, runImmediately bool) *OverdueChecker {
	return &OverdueChecker{
		cronScheduler:  cron.New(cron.WithSeconds()),
		engine:         engine,
		runImmediately: runImmediately,
	}
}

// Start schedules the sweep every five minutes.
func (o *OverdueChecker) Start() error {
	var err error
	o.jobID, err = o.cronScheduler.AddFunc("0 */5 * * * *", o.runSweep)
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}

	o.cronScheduler.Start()
	log.Println("Overdue sweep scheduler started")

	if o.runImmediately {
		o.runSweep()
	}
	return nil
}

// Stop terminates the scheduler.
func (o *OverdueChecker) Stop() {
	if o.cronScheduler != nil {
		o.cronScheduler.Stop()
		log.Println("Overdue sweep scheduler stopped")
	}
}

// UpdateSchedule changes the sweep cadence.
// Format: "0 */5 * * * *" = every five minutes.
func (o *OverdueChecker) UpdateSchedule(schedule string) error {
	o.cronScheduler.Remove(o.jobID)

	var err error
	o.jobID, err = o.cronScheduler.AddFunc(schedule, o.runSweep)
	if err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	log.Printf("Overdue sweep schedule updated to: %s\n", schedule)
	return nil
}

func (o *OverdueChecker) runSweep() {
	moved, err := o.engine.MarkOverdue(context.Background(), time.Now())
	if err != nil {
		log.Printf("Error in overdue sweep: %v\n", err)
		return
	}
	if moved > 0 {
		log.Printf("Overdue sweep moved %d assignments\n", moved)
	}
}

// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// monthlyResetCron fires at 04:00 UTC on the 1st of every month.
const monthlyResetCron = "0 4 1 * *"

// StartResetScheduler runs the monthly free-point reset on a cron schedule.
func (s *ResetService) StartResetScheduler() {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		log.Printf("[SCHEDULER] Failed to create scheduler: %v", err)
		return
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.CronJob(monthlyResetCron, false),
		gocron.NewTask(func() {
			log.Println("[SCHEDULER] Starting monthly free point reset")
			if _, err := s.ResetMonthlyFreePoints(context.Background()); err != nil {
				log.Printf("[SCHEDULER] Monthly reset failed: %v", err)
			}
		}),
	)
	if err != nil {
		log.Printf("[SCHEDULER] Failed to register monthly reset job: %v", err)
	}
}

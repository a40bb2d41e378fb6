package cron

import (
	"context"

	"github.com/askhat-b/MentorLink/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartReminderCronJobs registers the periodic reminder scans.
func StartReminderCronJobs(scanner *jobs.ReminderScanner) {
	c := cron.New()

	// Goal target dates approaching
	c.AddFunc("@hourly", func() {
		if err := scanner.ScanGoalsDueSoon(context.Background()); err != nil {
			logrus.WithError(err).Error("ScanGoalsDueSoon failed")
		}
	})

	// Pending relationships nobody responded to
	c.AddFunc("@daily", func() {
		if err := scanner.ScanStaleRelationships(context.Background()); err != nil {
			logrus.WithError(err).Error("ScanStaleRelationships failed")
		}
	})

	c.Start()
}

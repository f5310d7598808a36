package vgroup

import (
	"permflow/persistence"
	"time"

	"github.com/jinzhu/gorm"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultExpirySchedule = "0 */10 * * * *"

// ExpireOverdueGroups marks active groups whose expire time has passed as inactive.
// Memberships and bindings are kept.
func ExpireOverdueGroups(now time.Time, tx *gorm.DB) (int64, error) {
	db := tx.Model(&VirtualGroup{}).
		Where("status = ? AND expire_time IS NOT NULL AND expire_time <= ?", StatusActive, now).
		Update("status", StatusInactive)
	return db.RowsAffected, db.Error
}

// StartExpirySweeper runs ExpireOverdueGroups on schedule (cron expression with seconds field)
func StartExpirySweeper(schedule string, ds *persistence.DataSourceManager) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultExpirySchedule
	}
	crontab := cron.New(cron.WithSeconds())
	_, err := crontab.AddFunc(schedule, func() {
		count, err := ExpireOverdueGroups(time.Now(), ds.GormDB())
		if err != nil {
			logrus.Errorf("virtual group expiry: %v", err)
			return
		}
		if count > 0 {
			logrus.Infof("virtual group expiry: %d groups deactivated", count)
		}
	})
	if err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}

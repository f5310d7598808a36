package changelog

import (
	"permflow/domain"
	"permflow/idgen"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type ChangeType string

const (
	ChangeTypeJoin    = ChangeType("JOIN")
	ChangeTypeExit    = ChangeType("EXIT")
	ChangeTypeRemoved = ChangeType("REMOVED")
)

// SelfExitMarker prefixes the reason of entries written by self-service exits
const SelfExitMarker = "[SELF_EXIT]"

// MemberChangeLog is append only, one entry per membership mutating operation
type MemberChangeLog struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ChangeType ChangeType        `json:"changeType" sql:"type:VARCHAR(32) NOT NULL"`
	TargetType domain.TargetType `json:"targetType" gorm:"index:idx_changelog_target" sql:"type:VARCHAR(32) NOT NULL"`
	TargetID   types.ID          `json:"targetId" gorm:"index:idx_changelog_target"`
	UserID     types.ID          `json:"userId" gorm:"index:idx_changelog_user"`
	OperatorID types.ID          `json:"operatorId"`
	Reason     string            `json:"reason" sql:"type:VARCHAR(1024)"`

	CreateTime time.Time `json:"createdAt" gorm:"precision:6;not null"`
}

type Entry struct {
	ChangeType ChangeType
	TargetType domain.TargetType
	TargetID   types.ID
	UserID     types.ID
	OperatorID types.ID
	Reason     string
}

type ChangeLogQuery struct {
	TargetType domain.TargetType `form:"targetType" json:"targetType"`
	TargetID   types.ID          `form:"targetId" json:"targetId"`
	UserID     types.ID          `form:"userId" json:"userId"`
}

var idWorker = idgen.NewWorker()

// Record appends the entry within tx. The returned log is dispatched to handlers once tx commits.
func Record(e Entry, tx *gorm.DB) (*MemberChangeLog, error) {
	l := MemberChangeLog{
		ID:         idgen.NextID(idWorker),
		ChangeType: e.ChangeType,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		UserID:     e.UserID,
		OperatorID: e.OperatorID,
		Reason:     e.Reason,
		CreateTime: time.Now(),
	}
	if err := tx.Create(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// QueryChangeLogs newest first, zero valued conditions are ignored
func QueryChangeLogs(q ChangeLogQuery, tx *gorm.DB) ([]MemberChangeLog, error) {
	db := tx.Model(&MemberChangeLog{})
	if q.TargetType != "" {
		db = db.Where("target_type = ?", q.TargetType)
	}
	if q.TargetID != 0 {
		db = db.Where("target_id = ?", q.TargetID)
	}
	if q.UserID != 0 {
		db = db.Where("user_id = ?", q.UserID)
	}
	logs := []MemberChangeLog{}
	if err := db.Order("create_time DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

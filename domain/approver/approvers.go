package approver

import (
	"permflow/domain"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Approver grants UserID the right to approve requests for, and manage members of, the target
type Approver struct {
	TargetType domain.TargetType `json:"targetType" gorm:"primary_key" sql:"type:VARCHAR(32) NOT NULL"`
	TargetID   types.ID          `json:"targetId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	UserID     types.ID          `json:"userId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`

	CreatorID  types.ID  `json:"creatorId"`
	CreateTime time.Time `json:"createTime" gorm:"precision:6;not null"`
}

type ApproverQuery struct {
	TargetType domain.TargetType `form:"targetType" json:"targetType" binding:"required"`
	TargetID   types.ID          `form:"targetId" json:"targetId" binding:"required"`
}

type ApproverCreation struct {
	TargetType domain.TargetType `form:"targetType" json:"targetType" binding:"required"`
	TargetID   types.ID          `form:"targetId" json:"targetId" binding:"required"`
	UserID     types.ID          `form:"userId" json:"userId" binding:"required"`
}

type ResolverTraits interface {
	IsApprover(userId types.ID, targetType domain.TargetType, targetId types.ID, tx *gorm.DB) (bool, error)
	HasApprover(targetType domain.TargetType, targetId types.ID, tx *gorm.DB) (bool, error)
}

// Resolver answers approver questions from the approvers table
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) IsApprover(userId types.ID, targetType domain.TargetType, targetId types.ID, tx *gorm.DB) (bool, error) {
	var count int
	if err := tx.Model(&Approver{}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", targetType, targetId, userId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Resolver) HasApprover(targetType domain.TargetType, targetId types.ID, tx *gorm.DB) (bool, error) {
	var count int
	if err := tx.Model(&Approver{}).
		Where("target_type = ? AND target_id = ?", targetType, targetId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListApprovers approvers of the target, ordered by user id
func ListApprovers(q ApproverQuery, tx *gorm.DB) ([]Approver, error) {
	records := []Approver{}
	if err := tx.Where("target_type = ? AND target_id = ?", q.TargetType, q.TargetID).
		Order("user_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListApproverTargets targets of the given type that userId approves
func ListApproverTargets(userId types.ID, targetType domain.TargetType, tx *gorm.DB) ([]types.ID, error) {
	var ids []types.ID
	if err := tx.Model(&Approver{}).Where("user_id = ? AND target_type = ?", userId, targetType).
		Pluck("target_id", &ids).Error; err != nil {
		return nil, err
	}
	if ids == nil {
		return []types.ID{}, nil
	}
	return ids, nil
}

// SaveApprover create the approver record, creating an existing one again is a no-op
func SaveApprover(c ApproverCreation, creatorId types.ID, tx *gorm.DB) (*Approver, error) {
	if err := c.TargetType.Validate(); err != nil {
		return nil, err
	}
	record := Approver{}
	err := tx.Where("target_type = ? AND target_id = ? AND user_id = ?", c.TargetType, c.TargetID, c.UserID).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	record = Approver{TargetType: c.TargetType, TargetID: c.TargetID, UserID: c.UserID, CreatorID: creatorId, CreateTime: time.Now()}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func DeleteApprover(targetType domain.TargetType, targetId, userId types.ID, tx *gorm.DB) error {
	return tx.Where("target_type = ? AND target_id = ? AND user_id = ?", targetType, targetId, userId).
		Delete(&Approver{}).Error
}

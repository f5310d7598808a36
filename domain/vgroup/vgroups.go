package vgroup

import (
	"errors"
	"permflow/bizerror"
	"permflow/idgen"
	"permflow/persistence"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type Status string

const (
	StatusActive   = Status("ACTIVE")
	StatusInactive = Status("INACTIVE")
)

type VirtualGroup struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	Name       string     `json:"name" gorm:"unique_index:uni_vgroup_name"`
	Status     Status     `json:"status" sql:"type:VARCHAR(32) NOT NULL"`
	ExpireTime *time.Time `json:"expireTime" gorm:"precision:6"`

	CreatorID  types.ID  `json:"creatorId"`
	CreateTime time.Time `json:"createTime" gorm:"precision:6;not null"`
}

// VirtualGroupMember presence means the user inherits the role bound to the group
type VirtualGroupMember struct {
	VirtualGroupID types.ID  `json:"virtualGroupId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	UserID         types.ID  `json:"userId" gorm:"primary_key;auto_increment:false;index:idx_vgroup_member_user" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime     time.Time `json:"createTime" gorm:"precision:6;not null"`
}

// VirtualGroupRole the group id is the primary key, a group has at most one bound role
type VirtualGroupRole struct {
	VirtualGroupID types.ID  `json:"virtualGroupId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RoleID         types.ID  `json:"roleId" gorm:"index:idx_vgroup_role_role"`
	CreateTime     time.Time `json:"createTime" gorm:"precision:6;not null"`
}

type VirtualGroupCreation struct {
	Name       string     `json:"name" binding:"required,lte=255"`
	ExpireTime *time.Time `json:"expireTime"`
}

var idWorker = idgen.NewWorker()

func CreateVirtualGroup(c VirtualGroupCreation, creatorId types.ID, tx *gorm.DB) (*VirtualGroup, error) {
	g := VirtualGroup{ID: idgen.NextID(idWorker), Name: c.Name, Status: StatusActive, ExpireTime: c.ExpireTime,
		CreatorID: creatorId, CreateTime: time.Now()}
	if err := tx.Create(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func ExistsById(id types.ID, tx *gorm.DB) (bool, error) {
	var count int
	if err := tx.Model(&VirtualGroup{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func FindVirtualGroup(id types.ID, tx *gorm.DB) (*VirtualGroup, error) {
	g := VirtualGroup{}
	if err := tx.Where("id = ?", id).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.NewErrNotFound("virtual group", id)
		}
		return nil, err
	}
	return &g, nil
}

// FindMember returns nil when the user is not a member of the group
func FindMember(groupId, userId types.ID, tx *gorm.DB) (*VirtualGroupMember, error) {
	m := VirtualGroupMember{}
	if err := tx.Where("virtual_group_id = ? AND user_id = ?", groupId, userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CreateMember inserts the membership, a concurrent insert of the same membership is reported as ErrConcurrentModification
func CreateMember(groupId, userId types.ID, tx *gorm.DB) (*VirtualGroupMember, error) {
	m := VirtualGroupMember{VirtualGroupID: groupId, UserID: userId, CreateTime: time.Now()}
	if err := tx.Create(&m).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, bizerror.ErrConcurrentModification
		}
		return nil, err
	}
	return &m, nil
}

func DeleteMember(groupId, userId types.ID, tx *gorm.DB) error {
	return tx.Where("virtual_group_id = ? AND user_id = ?", groupId, userId).Delete(&VirtualGroupMember{}).Error
}

// GroupIdsOfUser ids of virtual groups the user is a member of
func GroupIdsOfUser(userId types.ID, tx *gorm.DB) ([]types.ID, error) {
	var ids []types.ID
	if err := tx.Model(&VirtualGroupMember{}).Where("user_id = ?", userId).
		Order("virtual_group_id ASC").Pluck("virtual_group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func ListMembers(groupId types.ID, tx *gorm.DB) ([]VirtualGroupMember, error) {
	members := []VirtualGroupMember{}
	if err := tx.Where("virtual_group_id = ?", groupId).Order("user_id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// BoundRoleIds ids of the roles bound to the given groups, groups without binding contribute nothing
func BoundRoleIds(groupIds []types.ID, tx *gorm.DB) ([]types.ID, error) {
	if len(groupIds) == 0 {
		return []types.ID{}, nil
	}
	var ids []types.ID
	if err := tx.Model(&VirtualGroupRole{}).Where("virtual_group_id IN (?)", groupIds).
		Order("virtual_group_id ASC").Pluck("role_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// RoleIdsOfUser ids of the roles the user inherits through virtual group memberships
func RoleIdsOfUser(userId types.ID, tx *gorm.DB) ([]types.ID, error) {
	groupIds, err := GroupIdsOfUser(userId, tx)
	if err != nil {
		return nil, err
	}
	return BoundRoleIds(groupIds, tx)
}

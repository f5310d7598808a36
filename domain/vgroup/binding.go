package vgroup

import (
	"context"
	"errors"
	"permflow/bizerror"
	"permflow/domain/role"
	"permflow/persistence"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

type BindingManagerTraits interface {
	BindRole(ctx context.Context, groupId, roleId types.ID) error
	GetBoundRole(ctx context.Context, groupId types.ID) (*role.Role, error)
	UnbindRole(ctx context.Context, groupId types.ID) error
}

// BindingManager maintains the single role bound to each virtual group
type BindingManager struct {
	dataSource *persistence.DataSourceManager
	roles      role.DirectoryTraits
}

func NewBindingManager(ds *persistence.DataSourceManager, roles role.DirectoryTraits) *BindingManager {
	return &BindingManager{dataSource: ds, roles: roles}
}

// BindRole replaces the role bound to the group with roleId, only business roles can be bound
func (m *BindingManager) BindRole(ctx context.Context, groupId, roleId types.ID) error {
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return BindRoleTx(groupId, roleId, m.roles, tx)
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"virtualGroupId": groupId, "roleId": roleId}).Info("virtual group role bound")
	return nil
}

func BindRoleTx(groupId, roleId types.ID, roles role.DirectoryTraits, tx *gorm.DB) error {
	exists, err := ExistsById(groupId, tx)
	if err != nil {
		return err
	}
	if !exists {
		return bizerror.NewErrNotFound("virtual group", groupId)
	}
	r, err := roles.FindRole(roleId, tx)
	if err != nil {
		return err
	}
	if !role.IsBusinessRole(r) {
		return bizerror.ErrRoleNotBindable
	}

	if err := tx.Where("virtual_group_id = ?", groupId).Delete(&VirtualGroupRole{}).Error; err != nil {
		return err
	}
	binding := VirtualGroupRole{VirtualGroupID: groupId, RoleID: roleId, CreateTime: time.Now()}
	if err := tx.Create(&binding).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return bizerror.ErrConcurrentModification
		}
		return err
	}
	return nil
}

// GetBoundRole returns nil when no role is bound to the group
func (m *BindingManager) GetBoundRole(ctx context.Context, groupId types.ID) (*role.Role, error) {
	db := m.dataSource.GormDBWithContext(ctx)
	if _, err := FindVirtualGroup(groupId, db); err != nil {
		return nil, err
	}
	binding := VirtualGroupRole{}
	if err := db.Where("virtual_group_id = ?", groupId).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.roles.FindRole(binding.RoleID, db)
}

// UnbindRole removes the binding of the group, unbinding a group without binding is a no-op
func (m *BindingManager) UnbindRole(ctx context.Context, groupId types.ID) error {
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := FindVirtualGroup(groupId, tx); err != nil {
			return err
		}
		return tx.Where("virtual_group_id = ?", groupId).Delete(&VirtualGroupRole{}).Error
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"virtualGroupId": groupId}).Info("virtual group role unbound")
	return nil
}

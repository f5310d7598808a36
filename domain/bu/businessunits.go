package bu

import (
	"errors"
	"permflow/bizerror"
	"permflow/idgen"
	"permflow/persistence"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type BusinessUnit struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	Name string `json:"name" gorm:"unique_index:uni_bu_name"`

	CreatorID  types.ID  `json:"creatorId"`
	CreateTime time.Time `json:"createTime" gorm:"precision:6;not null"`
}

// UserBusinessUnit presence activates the BU_BOUNDED roles the user holds through virtual groups
type UserBusinessUnit struct {
	UserID         types.ID  `json:"userId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	BusinessUnitID types.ID  `json:"businessUnitId" gorm:"primary_key;auto_increment:false;index:idx_ubu_bu" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime     time.Time `json:"createTime" gorm:"precision:6;not null"`
}

// UserBusinessUnitRole explicit role grant scoped to one business unit
type UserBusinessUnitRole struct {
	UserID         types.ID  `json:"userId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	BusinessUnitID types.ID  `json:"businessUnitId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RoleID         types.ID  `json:"roleId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime     time.Time `json:"createTime" gorm:"precision:6;not null"`
}

// BusinessUnitRole a role the business unit offers to its members
type BusinessUnitRole struct {
	BusinessUnitID types.ID  `json:"businessUnitId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RoleID         types.ID  `json:"roleId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime     time.Time `json:"createTime" gorm:"precision:6;not null"`
}

type BusinessUnitCreation struct {
	Name string `json:"name" binding:"required,lte=255"`
}

var idWorker = idgen.NewWorker()

func CreateBusinessUnit(c BusinessUnitCreation, creatorId types.ID, tx *gorm.DB) (*BusinessUnit, error) {
	b := BusinessUnit{ID: idgen.NextID(idWorker), Name: c.Name, CreatorID: creatorId, CreateTime: time.Now()}
	if err := tx.Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func ExistsById(id types.ID, tx *gorm.DB) (bool, error) {
	var count int
	if err := tx.Model(&BusinessUnit{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func FindBusinessUnit(id types.ID, tx *gorm.DB) (*BusinessUnit, error) {
	b := BusinessUnit{}
	if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.NewErrNotFound("business unit", id)
		}
		return nil, err
	}
	return &b, nil
}

// FindMembership returns nil when the user is not a member of the business unit
func FindMembership(userId, buId types.ID, tx *gorm.DB) (*UserBusinessUnit, error) {
	m := UserBusinessUnit{}
	if err := tx.Where("user_id = ? AND business_unit_id = ?", userId, buId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func CreateMembership(userId, buId types.ID, tx *gorm.DB) (*UserBusinessUnit, error) {
	m := UserBusinessUnit{UserID: userId, BusinessUnitID: buId, CreateTime: time.Now()}
	if err := tx.Create(&m).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, bizerror.ErrConcurrentModification
		}
		return nil, err
	}
	return &m, nil
}

func DeleteMembership(userId, buId types.ID, tx *gorm.DB) error {
	return tx.Where("user_id = ? AND business_unit_id = ?", userId, buId).Delete(&UserBusinessUnit{}).Error
}

// CountMemberships number of business units the user is a member of
func CountMemberships(userId types.ID, tx *gorm.DB) (int, error) {
	var count int
	if err := tx.Model(&UserBusinessUnit{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func ListMembers(buId types.ID, tx *gorm.DB) ([]UserBusinessUnit, error) {
	members := []UserBusinessUnit{}
	if err := tx.Where("business_unit_id = ?", buId).Order("user_id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// FindUserRole returns nil when the role is not assigned to the user in the business unit
func FindUserRole(userId, buId, roleId types.ID, tx *gorm.DB) (*UserBusinessUnitRole, error) {
	r := UserBusinessUnitRole{}
	if err := tx.Where("user_id = ? AND business_unit_id = ? AND role_id = ?", userId, buId, roleId).
		First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func ListUserRoles(userId, buId types.ID, tx *gorm.DB) ([]UserBusinessUnitRole, error) {
	records := []UserBusinessUnitRole{}
	if err := tx.Where("user_id = ? AND business_unit_id = ?", userId, buId).
		Order("role_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func CreateUserRole(userId, buId, roleId types.ID, tx *gorm.DB) (*UserBusinessUnitRole, error) {
	r := UserBusinessUnitRole{UserID: userId, BusinessUnitID: buId, RoleID: roleId, CreateTime: time.Now()}
	if err := tx.Create(&r).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, bizerror.ErrConcurrentModification
		}
		return nil, err
	}
	return &r, nil
}

func DeleteUserRole(r UserBusinessUnitRole, tx *gorm.DB) error {
	return tx.Where("user_id = ? AND business_unit_id = ? AND role_id = ?", r.UserID, r.BusinessUnitID, r.RoleID).
		Delete(&UserBusinessUnitRole{}).Error
}

// DeleteAllUserRoles deletes exactly the given rows, it must not be called with an empty set
func DeleteAllUserRoles(records []UserBusinessUnitRole, tx *gorm.DB) error {
	if len(records) == 0 {
		return errors.New("no user business unit roles to delete")
	}
	for _, r := range records {
		if err := DeleteUserRole(r, tx); err != nil {
			return err
		}
	}
	return nil
}

// ListOfferedRoleIds ids of the roles bound to the business unit
func ListOfferedRoleIds(buId types.ID, tx *gorm.DB) ([]types.ID, error) {
	var ids []types.ID
	if err := tx.Model(&BusinessUnitRole{}).Where("business_unit_id = ?", buId).
		Order("role_id ASC").Pluck("role_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveOfferedRole binds roleId to the business unit, binding it again is a no-op
func SaveOfferedRole(buId, roleId types.ID, tx *gorm.DB) error {
	var count int
	if err := tx.Model(&BusinessUnitRole{}).Where("business_unit_id = ? AND role_id = ?", buId, roleId).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&BusinessUnitRole{BusinessUnitID: buId, RoleID: roleId, CreateTime: time.Now()}).Error
}

func DeleteOfferedRole(buId, roleId types.ID, tx *gorm.DB) error {
	return tx.Where("business_unit_id = ? AND role_id = ?", buId, roleId).Delete(&BusinessUnitRole{}).Error
}

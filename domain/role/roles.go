package role

import (
	"permflow/idgen"
	"time"

	"github.com/jinzhu/gorm"
)

type RoleCreation struct {
	Name        string   `json:"name" binding:"required,lte=255"`
	Type        RoleType `json:"type" binding:"required,oneof=BU_BOUNDED BU_UNBOUNDED ADMIN DEVELOPER"`
	Description string   `json:"description" binding:"lte=1024"`
}

var idWorker = idgen.NewWorker()

func CreateRole(c RoleCreation, tx *gorm.DB) (*Role, error) {
	r := Role{ID: idgen.NextID(idWorker), Name: c.Name, Type: c.Type, Description: c.Description, CreateTime: time.Now()}
	if err := tx.Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func ListRoles(tx *gorm.DB) ([]Role, error) {
	roles := []Role{}
	if err := tx.Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

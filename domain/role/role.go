package role

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type RoleType string

const (
	RoleTypeBuBounded   = RoleType("BU_BOUNDED")
	RoleTypeBuUnbounded = RoleType("BU_UNBOUNDED")
	RoleTypeAdmin       = RoleType("ADMIN")
	RoleTypeDeveloper   = RoleType("DEVELOPER")
)

// IsBusiness reports whether roles of this type can be bound to a virtual group or a business unit.
func (t RoleType) IsBusiness() bool {
	return t == RoleTypeBuBounded || t == RoleTypeBuUnbounded
}

type Role struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	Name        string   `json:"name" gorm:"unique_index:uni_role_name"`
	Type        RoleType `json:"type" sql:"type:VARCHAR(32) NOT NULL"`
	Description string   `json:"description" sql:"type:VARCHAR(1024)"`

	CreateTime time.Time `json:"createTime" gorm:"precision:6;not null"`
}

func IsBusinessRole(r *Role) bool {
	return r != nil && r.Type.IsBusiness()
}

// FilterByType keeps roles of type t, preserving order
func FilterByType(roles []Role, t RoleType) []Role {
	result := []Role{}
	for _, r := range roles {
		if r.Type == t {
			result = append(result, r)
		}
	}
	return result
}

package effective

import (
	"context"
	"permflow/domain/bu"
	"permflow/domain/preference"
	"permflow/domain/role"
	"permflow/domain/vgroup"
	"permflow/persistence"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

const KeyDontRemindBuApplication = "DONT_REMIND_BU_APPLICATION"

type EvaluatorTraits interface {
	GetUserBuUnboundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error)
	GetUnactivatedBuBoundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error)
	GetActivatedBuBoundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error)
	HasRoleInBusinessUnit(ctx context.Context, userId, roleId, buId types.ID) (bool, error)
	ShouldShowBuApplicationReminder(ctx context.Context, userId types.ID) (bool, error)
	SetDontRemindPreference(ctx context.Context, userId types.ID, value bool) error

	HoldsBuBoundedRole(userId types.ID, tx *gorm.DB) (bool, error)
}

// Evaluator derives role effectiveness from virtual group memberships, role bindings and
// business unit memberships on every call, nothing derived is stored.
type Evaluator struct {
	dataSource *persistence.DataSourceManager
	roles      role.DirectoryTraits
}

func NewEvaluator(ds *persistence.DataSourceManager, roles role.DirectoryTraits) *Evaluator {
	return &Evaluator{dataSource: ds, roles: roles}
}

// GetUserBuUnboundedRoles BU_UNBOUNDED roles are effective regardless of business unit membership
func (e *Evaluator) GetUserBuUnboundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error) {
	roles, err := e.reachableRoles(userId, e.dataSource.GormDBWithContext(ctx))
	if err != nil {
		return nil, err
	}
	return role.FilterByType(roles, role.RoleTypeBuUnbounded), nil
}

// GetUnactivatedBuBoundedRoles the BU_BOUNDED roles of a user who belongs to no business unit
func (e *Evaluator) GetUnactivatedBuBoundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error) {
	return e.buBoundedRoles(userId, false, e.dataSource.GormDBWithContext(ctx))
}

// GetActivatedBuBoundedRoles the BU_BOUNDED roles of a user who belongs to at least one business unit
func (e *Evaluator) GetActivatedBuBoundedRoles(ctx context.Context, userId types.ID) ([]role.Role, error) {
	return e.buBoundedRoles(userId, true, e.dataSource.GormDBWithContext(ctx))
}

// HasRoleInBusinessUnit a reachable BU_BOUNDED role is effective only in business units the user is a member of,
// a reachable BU_UNBOUNDED role is effective everywhere.
//
// The rule is wider than virtual group reachability: an explicit UserBusinessUnitRole row for the user, unit and
// role also makes the role effective, even when no virtual group of the user binds it. Those rows are only
// written by AddUserToBusinessUnitWithRoles together with the membership and are deleted with it, so they
// never outlive the membership that scopes them.
func (e *Evaluator) HasRoleInBusinessUnit(ctx context.Context, userId, roleId, buId types.ID) (bool, error) {
	db := e.dataSource.GormDBWithContext(ctx)
	roles, err := e.reachableRoles(userId, db)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.ID != roleId {
			continue
		}
		if r.Type == role.RoleTypeBuUnbounded {
			return true, nil
		}
		membership, err := bu.FindMembership(userId, buId, db)
		if err != nil {
			return false, err
		}
		if membership != nil {
			return true, nil
		}
		break
	}

	explicit, err := bu.FindUserRole(userId, buId, roleId, db)
	if err != nil {
		return false, err
	}
	return explicit != nil, nil
}

// ShouldShowBuApplicationReminder true while the user has unactivated roles, unless the user opted out
func (e *Evaluator) ShouldShowBuApplicationReminder(ctx context.Context, userId types.ID) (bool, error) {
	unactivated, err := e.GetUnactivatedBuBoundedRoles(ctx, userId)
	if err != nil {
		return false, err
	}
	if len(unactivated) == 0 {
		return false, nil
	}
	p, err := preference.Get(userId, KeyDontRemindBuApplication, e.dataSource.GormDBWithContext(ctx))
	if err != nil {
		return false, err
	}
	return p == nil || p.Value != strconv.FormatBool(true), nil
}

func (e *Evaluator) SetDontRemindPreference(ctx context.Context, userId types.ID, value bool) error {
	return e.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := preference.Upsert(userId, KeyDontRemindBuApplication, strconv.FormatBool(value), tx)
		return err
	})
}

// HoldsBuBoundedRole whether any role reachable through virtual groups is BU_BOUNDED
func (e *Evaluator) HoldsBuBoundedRole(userId types.ID, tx *gorm.DB) (bool, error) {
	roles, err := e.reachableRoles(userId, tx)
	if err != nil {
		return false, err
	}
	return len(role.FilterByType(roles, role.RoleTypeBuBounded)) > 0, nil
}

func (e *Evaluator) buBoundedRoles(userId types.ID, activated bool, db *gorm.DB) ([]role.Role, error) {
	roles, err := e.reachableRoles(userId, db)
	if err != nil {
		return nil, err
	}
	bounded := role.FilterByType(roles, role.RoleTypeBuBounded)
	if len(bounded) == 0 {
		return bounded, nil
	}
	count, err := bu.CountMemberships(userId, db)
	if err != nil {
		return nil, err
	}
	if (count > 0) != activated {
		return []role.Role{}, nil
	}
	return bounded, nil
}

// reachableRoles roles bound to the virtual groups the user is a member of
func (e *Evaluator) reachableRoles(userId types.ID, db *gorm.DB) ([]role.Role, error) {
	roleIds, err := vgroup.RoleIdsOfUser(userId, db)
	if err != nil {
		return nil, err
	}
	return e.roles.FindRolesByIds(roleIds, db)
}

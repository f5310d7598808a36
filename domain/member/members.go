package member

import (
	"context"
	"permflow/bizerror"
	"permflow/domain"
	"permflow/domain/approver"
	"permflow/domain/bu"
	"permflow/domain/changelog"
	"permflow/domain/role"
	"permflow/domain/vgroup"
	"permflow/persistence"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

type ManagerTraits interface {
	AddUserToVirtualGroup(ctx context.Context, userId, groupId, operatorId types.ID) error
	AddUserToBusinessUnitWithRoles(ctx context.Context, userId, buId types.ID, roleIds []types.ID, operatorId types.ID) error

	RemoveVirtualGroupMember(ctx context.Context, groupId, userId, approverId types.ID) error
	RemoveBusinessUnitMember(ctx context.Context, buId, userId, approverId types.ID) error
	RemoveBusinessUnitRole(ctx context.Context, buId, userId, roleId, approverId types.ID) error

	ExitVirtualGroup(ctx context.Context, groupId, userId types.ID) error
	ExitBusinessUnit(ctx context.Context, buId, userId types.ID) error
	ExitBusinessUnitRoles(ctx context.Context, buId, userId types.ID, roleIds []types.ID) error

	ProcessApprovedRequest(request *domain.PermissionRequest, tx *gorm.DB) ([]changelog.MemberChangeLog, error)
}

// Manager performs membership mutations. Every mutation and its change log entry are written in one
// transaction, the entries are dispatched to change log handlers after commit.
type Manager struct {
	dataSource *persistence.DataSourceManager
	approvers  approver.ResolverTraits
	roles      role.DirectoryTraits
}

func NewManager(ds *persistence.DataSourceManager, approvers approver.ResolverTraits, roles role.DirectoryTraits) *Manager {
	return &Manager{dataSource: ds, approvers: approvers, roles: roles}
}

func (m *Manager) AddUserToVirtualGroup(ctx context.Context, userId, groupId, operatorId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		return addUserToVirtualGroup(userId, groupId, operatorId, "added by operator", tx)
	})
}

// AddUserToBusinessUnitWithRoles grants business roles the unit offers, creating the membership when absent
func (m *Manager) AddUserToBusinessUnitWithRoles(ctx context.Context, userId, buId types.ID, roleIds []types.ID, operatorId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if _, err := bu.FindBusinessUnit(buId, tx); err != nil {
			return nil, err
		}
		roles, err := m.roles.FindRolesByIds(roleIds, tx)
		if err != nil {
			return nil, err
		}
		found := map[types.ID]role.Role{}
		for _, r := range roles {
			found[r.ID] = r
		}
		for _, id := range roleIds {
			r, ok := found[id]
			if !ok {
				return nil, bizerror.NewErrNotFound("role", id)
			}
			if !role.IsBusinessRole(&r) {
				return nil, bizerror.ErrRoleNotBindable
			}
		}
		offered, err := bu.ListOfferedRoleIds(buId, tx)
		if err != nil {
			return nil, err
		}
		for _, id := range roleIds {
			if !containsId(offered, id) {
				return nil, bizerror.ErrRoleNotOffered
			}
		}

		membership, err := bu.FindMembership(userId, buId, tx)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			if _, err := bu.CreateMembership(userId, buId, tx); err != nil {
				return nil, err
			}
		}

		var granted []types.ID
		for _, r := range roles {
			existing, err := bu.FindUserRole(userId, buId, r.ID, tx)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}
			if _, err := bu.CreateUserRole(userId, buId, r.ID, tx); err != nil {
				return nil, err
			}
			granted = append(granted, r.ID)
		}

		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeJoin, TargetType: domain.TargetBusinessUnit,
			TargetID: buId, UserID: userId, OperatorID: operatorId, Reason: "roles granted: " + joinIds(granted)}, tx)
	})
}

func (m *Manager) RemoveVirtualGroupMember(ctx context.Context, groupId, userId, approverId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if err := m.authorize(approverId, domain.TargetVirtualGroup, groupId, tx); err != nil {
			return nil, err
		}
		if _, err := vgroup.FindVirtualGroup(groupId, tx); err != nil {
			return nil, err
		}
		membership, err := vgroup.FindMember(groupId, userId, tx)
		if err != nil {
			return nil, err
		}
		if membership != nil {
			if err := vgroup.DeleteMember(groupId, userId, tx); err != nil {
				return nil, err
			}
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeRemoved, TargetType: domain.TargetVirtualGroup,
			TargetID: groupId, UserID: userId, OperatorID: approverId, Reason: "removed by approver"}, tx)
	})
}

func (m *Manager) RemoveBusinessUnitMember(ctx context.Context, buId, userId, approverId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if err := m.authorize(approverId, domain.TargetBusinessUnit, buId, tx); err != nil {
			return nil, err
		}
		if _, err := bu.FindBusinessUnit(buId, tx); err != nil {
			return nil, err
		}
		if err := deleteBusinessUnitMembership(userId, buId, tx); err != nil {
			return nil, err
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeRemoved, TargetType: domain.TargetBusinessUnit,
			TargetID: buId, UserID: userId, OperatorID: approverId, Reason: "removed by approver"}, tx)
	})
}

func (m *Manager) RemoveBusinessUnitRole(ctx context.Context, buId, userId, roleId, approverId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if err := m.authorize(approverId, domain.TargetBusinessUnit, buId, tx); err != nil {
			return nil, err
		}
		if _, err := bu.FindBusinessUnit(buId, tx); err != nil {
			return nil, err
		}
		record, err := bu.FindUserRole(userId, buId, roleId, tx)
		if err != nil {
			return nil, err
		}
		if record != nil {
			if err := bu.DeleteUserRole(*record, tx); err != nil {
				return nil, err
			}
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeRemoved, TargetType: domain.TargetBusinessUnit,
			TargetID: buId, UserID: userId, OperatorID: approverId, Reason: "role removed by approver: " + roleId.String()}, tx)
	})
}

// ExitVirtualGroup leaving a group the user is not a member of still succeeds and is still logged
func (m *Manager) ExitVirtualGroup(ctx context.Context, groupId, userId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if err := vgroup.DeleteMember(groupId, userId, tx); err != nil {
			return nil, err
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeExit, TargetType: domain.TargetVirtualGroup,
			TargetID: groupId, UserID: userId, OperatorID: userId, Reason: changelog.SelfExitMarker + " exit virtual group"}, tx)
	})
}

func (m *Manager) ExitBusinessUnit(ctx context.Context, buId, userId types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		if err := deleteBusinessUnitMembership(userId, buId, tx); err != nil {
			return nil, err
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeExit, TargetType: domain.TargetBusinessUnit,
			TargetID: buId, UserID: userId, OperatorID: userId, Reason: changelog.SelfExitMarker + " exit business unit"}, tx)
	})
}

// ExitBusinessUnitRoles gives up some of the roles held in the business unit, the membership is kept
func (m *Manager) ExitBusinessUnitRoles(ctx context.Context, buId, userId types.ID, roleIds []types.ID) error {
	return m.mutate(ctx, func(tx *gorm.DB) (*changelog.MemberChangeLog, error) {
		for _, roleId := range roleIds {
			record, err := bu.FindUserRole(userId, buId, roleId, tx)
			if err != nil {
				return nil, err
			}
			if record == nil {
				continue
			}
			if err := bu.DeleteUserRole(*record, tx); err != nil {
				return nil, err
			}
		}
		return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeExit, TargetType: domain.TargetBusinessUnit,
			TargetID: buId, UserID: userId, OperatorID: userId,
			Reason: changelog.SelfExitMarker + " exit roles: " + joinIds(roleIds)}, tx)
	})
}

// ProcessApprovedRequest grants what an approved request asked for, within the transaction of the approval.
// The returned change logs must be dispatched by the caller once tx commits.
func (m *Manager) ProcessApprovedRequest(request *domain.PermissionRequest, tx *gorm.DB) ([]changelog.MemberChangeLog, error) {
	reason := "permission request approved: " + request.ID.String()
	var l *changelog.MemberChangeLog
	var err error
	switch request.RequestType {
	case domain.TargetVirtualGroup:
		l, err = addUserToVirtualGroup(request.ApplicantID, request.TargetID, request.ApproverID, reason, tx)
	case domain.TargetBusinessUnit:
		l, err = addUserToBusinessUnit(request.ApplicantID, request.TargetID, request.ApproverID, reason, tx)
	default:
		return nil, bizerror.ErrUnknownRequestType
	}
	if err != nil {
		return nil, err
	}
	if l == nil {
		return []changelog.MemberChangeLog{}, nil
	}
	return []changelog.MemberChangeLog{*l}, nil
}

func (m *Manager) authorize(approverId types.ID, targetType domain.TargetType, targetId types.ID, tx *gorm.DB) error {
	ok, err := m.approvers.IsApprover(approverId, targetType, targetId, tx)
	if err != nil {
		return err
	}
	if !ok {
		return &bizerror.ErrNotApprover{TargetDesc: targetType.Desc()}
	}
	return nil
}

// mutate runs the unit of work in one transaction, then dispatches the change log it produced
func (m *Manager) mutate(ctx context.Context, work func(tx *gorm.DB) (*changelog.MemberChangeLog, error)) error {
	var l *changelog.MemberChangeLog
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = work(tx)
		return err
	})
	if err != nil {
		return err
	}
	if l != nil {
		logrus.WithFields(logrus.Fields{"changeType": l.ChangeType, "targetType": l.TargetType, "targetId": l.TargetID,
			"userId": l.UserID, "operatorId": l.OperatorID}).Info("member changed")
		changelog.Dispatch(ctx, []changelog.MemberChangeLog{*l})
	}
	return nil
}

// addUserToVirtualGroup returns a nil log when the user is already a member
func addUserToVirtualGroup(userId, groupId, operatorId types.ID, reason string, tx *gorm.DB) (*changelog.MemberChangeLog, error) {
	g, err := vgroup.FindVirtualGroup(groupId, tx)
	if err != nil {
		return nil, err
	}
	if g.Status != vgroup.StatusActive {
		return nil, bizerror.ErrTargetInactive
	}
	existing, err := vgroup.FindMember(groupId, userId, tx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	if _, err := vgroup.CreateMember(groupId, userId, tx); err != nil {
		return nil, err
	}
	return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeJoin, TargetType: domain.TargetVirtualGroup,
		TargetID: groupId, UserID: userId, OperatorID: operatorId, Reason: reason}, tx)
}

// addUserToBusinessUnit returns a nil log when the user is already a member
func addUserToBusinessUnit(userId, buId, operatorId types.ID, reason string, tx *gorm.DB) (*changelog.MemberChangeLog, error) {
	if _, err := bu.FindBusinessUnit(buId, tx); err != nil {
		return nil, err
	}
	existing, err := bu.FindMembership(userId, buId, tx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	if _, err := bu.CreateMembership(userId, buId, tx); err != nil {
		return nil, err
	}
	return changelog.Record(changelog.Entry{ChangeType: changelog.ChangeTypeJoin, TargetType: domain.TargetBusinessUnit,
		TargetID: buId, UserID: userId, OperatorID: operatorId, Reason: reason}, tx)
}

// deleteBusinessUnitMembership drops the membership and the legacy roles of the pair, absent membership is skipped
func deleteBusinessUnitMembership(userId, buId types.ID, tx *gorm.DB) error {
	membership, err := bu.FindMembership(userId, buId, tx)
	if err != nil {
		return err
	}
	if membership == nil {
		return nil
	}
	if err := bu.DeleteMembership(userId, buId, tx); err != nil {
		return err
	}
	records, err := bu.ListUserRoles(userId, buId, tx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return bu.DeleteAllUserRoles(records, tx)
}

func containsId(ids []types.ID, id types.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func joinIds(ids []types.ID) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

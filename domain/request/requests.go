package request

import (
	"context"
	"errors"
	"permflow/bizerror"
	"permflow/domain"
	"permflow/domain/approver"
	"permflow/domain/bu"
	"permflow/domain/changelog"
	"permflow/domain/member"
	"permflow/domain/vgroup"
	"permflow/idgen"
	"permflow/infra/metrics"
	"permflow/persistence"
	"permflow/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

type ManagerTraits interface {
	CreateRequest(ctx context.Context, applicantId types.ID, c domain.PermissionRequestCreation) (*domain.PermissionRequest, error)
	CreateVirtualGroupRequest(ctx context.Context, applicantId, groupId types.ID, reason string) (*domain.PermissionRequest, error)
	CreateBusinessUnitRequest(ctx context.Context, applicantId, buId types.ID, reason string) (*domain.PermissionRequest, error)

	Approve(ctx context.Context, requestId, approverId types.ID, comment string) (*domain.PermissionRequest, error)
	Reject(ctx context.Context, requestId, approverId types.ID, reason string) (*domain.PermissionRequest, error)
	Cancel(ctx context.Context, requestId, applicantId types.ID) (*domain.PermissionRequest, error)

	QueryMyRequests(ctx context.Context, applicantId types.ID) ([]domain.PermissionRequest, error)
	QueryPendingForApprover(ctx context.Context, approverId types.ID) ([]domain.PermissionRequest, error)
	Detail(requestId types.ID, sec *session.Session) (*domain.PermissionRequest, error)
}

// BuBoundedRoleHolder tells whether a user holds a BU_BOUNDED role through virtual groups
type BuBoundedRoleHolder interface {
	HoldsBuBoundedRole(userId types.ID, tx *gorm.DB) (bool, error)
}

// Manager drives permission requests from PENDING to exactly one terminal status.
// Approval and the grant it triggers are written in one transaction.
type Manager struct {
	dataSource *persistence.DataSourceManager
	approvers  approver.ResolverTraits
	holders    BuBoundedRoleHolder
	members    member.ManagerTraits
}

func NewManager(ds *persistence.DataSourceManager, approvers approver.ResolverTraits, holders BuBoundedRoleHolder,
	members member.ManagerTraits) *Manager {
	return &Manager{dataSource: ds, approvers: approvers, holders: holders, members: members}
}

var idWorker = idgen.NewWorker()

func (m *Manager) CreateRequest(ctx context.Context, applicantId types.ID, c domain.PermissionRequestCreation) (*domain.PermissionRequest, error) {
	switch c.RequestType {
	case domain.TargetVirtualGroup:
		return m.CreateVirtualGroupRequest(ctx, applicantId, c.TargetID, c.Reason)
	case domain.TargetBusinessUnit:
		return m.CreateBusinessUnitRequest(ctx, applicantId, c.TargetID, c.Reason)
	default:
		return nil, bizerror.ErrUnknownRequestType
	}
}

func (m *Manager) CreateVirtualGroupRequest(ctx context.Context, applicantId, groupId types.ID, reason string) (*domain.PermissionRequest, error) {
	return m.create(ctx, applicantId, domain.TargetVirtualGroup, groupId, reason, func(tx *gorm.DB) error {
		g, err := vgroup.FindVirtualGroup(groupId, tx)
		if err != nil {
			return err
		}
		if g.Status != vgroup.StatusActive {
			return bizerror.ErrTargetInactive
		}
		return m.requireApprover(domain.TargetVirtualGroup, groupId, tx)
	})
}

func (m *Manager) CreateBusinessUnitRequest(ctx context.Context, applicantId, buId types.ID, reason string) (*domain.PermissionRequest, error) {
	return m.create(ctx, applicantId, domain.TargetBusinessUnit, buId, reason, func(tx *gorm.DB) error {
		if _, err := bu.FindBusinessUnit(buId, tx); err != nil {
			return err
		}
		if err := m.requireApprover(domain.TargetBusinessUnit, buId, tx); err != nil {
			return err
		}
		ok, err := m.holders.HoldsBuBoundedRole(applicantId, tx)
		if err != nil {
			return err
		}
		if !ok {
			return bizerror.ErrBuBoundedRoleRequired
		}
		return nil
	})
}

func (m *Manager) create(ctx context.Context, applicantId types.ID, requestType domain.TargetType, targetId types.ID,
	reason string, check func(tx *gorm.DB) error) (*domain.PermissionRequest, error) {
	var r *domain.PermissionRequest
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := check(tx); err != nil {
			return err
		}

		var count int
		if err := tx.Model(&domain.PermissionRequest{}).
			Where("applicant_id = ? AND request_type = ? AND target_id = ? AND status = ?",
				applicantId, requestType, targetId, domain.RequestStatusPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return bizerror.ErrDuplicatePendingRequest
		}

		now := time.Now()
		r = &domain.PermissionRequest{
			ID:          idgen.NextID(idWorker),
			ApplicantID: applicantId,
			RequestType: requestType,
			TargetID:    targetId,
			Status:      domain.RequestStatusPending,
			Reason:      reason,
			PendingKey:  domain.PendingKeyOf(applicantId, requestType, targetId),
			CreateTime:  now,
			UpdateTime:  now,
		}
		if err := tx.Create(r).Error; err != nil {
			if persistence.IsUniqueViolation(err) {
				return bizerror.ErrDuplicatePendingRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestEntered(string(requestType), string(domain.RequestStatusPending))
	logrus.WithFields(logrus.Fields{"requestId": r.ID, "requestType": requestType, "targetId": targetId,
		"applicantId": applicantId}).Info("permission request created")
	return r, nil
}

// Approve grants the request. The status change and the grant commit together or not at all.
func (m *Manager) Approve(ctx context.Context, requestId, approverId types.ID, comment string) (*domain.PermissionRequest, error) {
	var r *domain.PermissionRequest
	var logs []changelog.MemberChangeLog
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = m.findForDecision(requestId, approverId, tx)
		if err != nil {
			return err
		}
		if err := transit(r, domain.RequestStatusApproved, approverId, comment, tx); err != nil {
			return err
		}
		logs, err = m.members.ProcessApprovedRequest(r, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	changelog.Dispatch(ctx, logs)
	metrics.RequestEntered(string(r.RequestType), string(r.Status))
	logrus.WithFields(logrus.Fields{"requestId": r.ID, "approverId": approverId}).Info("permission request approved")
	return r, nil
}

// Reject declines the request, a non blank reason is required. Nothing is granted.
func (m *Manager) Reject(ctx context.Context, requestId, approverId types.ID, reason string) (*domain.PermissionRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, bizerror.ErrRejectReasonRequired
	}
	var r *domain.PermissionRequest
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = m.findForDecision(requestId, approverId, tx)
		if err != nil {
			return err
		}
		return transit(r, domain.RequestStatusRejected, approverId, reason, tx)
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestEntered(string(r.RequestType), string(r.Status))
	logrus.WithFields(logrus.Fields{"requestId": r.ID, "approverId": approverId}).Info("permission request rejected")
	return r, nil
}

// Cancel withdraws a pending request, only its applicant may do so
func (m *Manager) Cancel(ctx context.Context, requestId, applicantId types.ID) (*domain.PermissionRequest, error) {
	var r *domain.PermissionRequest
	err := m.dataSource.GormDBWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = findRequest(requestId, tx)
		if err != nil {
			return err
		}
		if r.ApplicantID != applicantId {
			return bizerror.ErrForbidden
		}
		if r.Status != domain.RequestStatusPending {
			return bizerror.ErrRequestAlreadyProcessed
		}

		now := time.Now()
		db := tx.Model(&domain.PermissionRequest{}).
			Where("id = ? AND status = ?", r.ID, domain.RequestStatusPending).
			Updates(map[string]interface{}{"status": domain.RequestStatusCancelled, "update_time": now, "pending_key": nil})
		if db.Error != nil {
			return db.Error
		}
		if db.RowsAffected != 1 {
			return bizerror.ErrRequestAlreadyProcessed
		}
		r.Status = domain.RequestStatusCancelled
		r.UpdateTime = now
		r.PendingKey = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestEntered(string(r.RequestType), string(r.Status))
	logrus.WithFields(logrus.Fields{"requestId": r.ID, "applicantId": applicantId}).Info("permission request cancelled")
	return r, nil
}

func (m *Manager) QueryMyRequests(ctx context.Context, applicantId types.ID) ([]domain.PermissionRequest, error) {
	records := []domain.PermissionRequest{}
	if err := m.dataSource.GormDBWithContext(ctx).Where("applicant_id = ?", applicantId).
		Order("create_time DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// QueryPendingForApprover pending requests whose target the user approves, oldest first
func (m *Manager) QueryPendingForApprover(ctx context.Context, approverId types.ID) ([]domain.PermissionRequest, error) {
	db := m.dataSource.GormDBWithContext(ctx)
	records := []domain.PermissionRequest{}

	var conditions []string
	var args []interface{}
	for _, targetType := range []domain.TargetType{domain.TargetVirtualGroup, domain.TargetBusinessUnit} {
		targetIds, err := approver.ListApproverTargets(approverId, targetType, db)
		if err != nil {
			return nil, err
		}
		if len(targetIds) == 0 {
			continue
		}
		conditions = append(conditions, "(request_type = ? AND target_id IN (?))")
		args = append(args, targetType, targetIds)
	}
	if len(conditions) == 0 {
		return records, nil
	}

	if err := db.Where("status = ?", domain.RequestStatusPending).
		Where(strings.Join(conditions, " OR "), args...).
		Order("create_time ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Detail visible to the applicant, approvers of the target and system admins
func (m *Manager) Detail(requestId types.ID, sec *session.Session) (*domain.PermissionRequest, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	r, err := findRequest(requestId, db)
	if err != nil {
		return nil, err
	}
	if r.ApplicantID == sec.Identity.ID || sec.Perms.IsSystemAdmin() {
		return r, nil
	}
	ok, err := m.approvers.IsApprover(sec.Identity.ID, r.RequestType, r.TargetID, db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bizerror.ErrForbidden
	}
	return r, nil
}

// findForDecision checks existence, then approver authorization, then status
func (m *Manager) findForDecision(requestId, approverId types.ID, tx *gorm.DB) (*domain.PermissionRequest, error) {
	r, err := findRequest(requestId, tx)
	if err != nil {
		return nil, err
	}
	ok, err := m.approvers.IsApprover(approverId, r.RequestType, r.TargetID, tx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &bizerror.ErrNotApprover{TargetDesc: r.RequestType.Desc()}
	}
	if r.Status != domain.RequestStatusPending {
		return nil, bizerror.ErrRequestAlreadyProcessed
	}
	return r, nil
}

func (m *Manager) requireApprover(targetType domain.TargetType, targetId types.ID, tx *gorm.DB) error {
	ok, err := m.approvers.HasApprover(targetType, targetId, tx)
	if err != nil {
		return err
	}
	if !ok {
		return bizerror.ErrNoApproverConfigured
	}
	return nil
}

// transit moves a pending request to a decided status. A concurrent decision is detected by the status
// condition of the update and reported as already processed.
func transit(r *domain.PermissionRequest, status domain.RequestStatus, approverId types.ID, comment string, tx *gorm.DB) error {
	now := time.Now()
	db := tx.Model(&domain.PermissionRequest{}).
		Where("id = ? AND status = ?", r.ID, domain.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"approver_id":      approverId,
			"approver_comment": comment,
			"approved_at":      now,
			"update_time":      now,
			"pending_key":      nil,
		})
	if db.Error != nil {
		return db.Error
	}
	if db.RowsAffected != 1 {
		return bizerror.ErrRequestAlreadyProcessed
	}

	r.Status = status
	r.ApproverID = approverId
	r.ApproverComment = comment
	r.ApprovedAt = &now
	r.UpdateTime = now
	r.PendingKey = nil
	return nil
}

func findRequest(id types.ID, tx *gorm.DB) (*domain.PermissionRequest, error) {
	r := domain.PermissionRequest{}
	if err := tx.Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.NewErrNotFound("permission request", id)
		}
		return nil, err
	}
	return &r, nil
}

package domain

import (
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

type RequestStatus string

const (
	RequestStatusPending   = RequestStatus("PENDING")
	RequestStatusApproved  = RequestStatus("APPROVED")
	RequestStatusRejected  = RequestStatus("REJECTED")
	RequestStatusCancelled = RequestStatus("CANCELLED")
)

func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

type PermissionRequest struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ApplicantID types.ID      `json:"applicantId" gorm:"index:idx_applicant"`
	RequestType TargetType    `json:"requestType" sql:"type:VARCHAR(32) NOT NULL"`
	TargetID    types.ID      `json:"targetId" gorm:"index:idx_target"`
	Status      RequestStatus `json:"status" sql:"type:VARCHAR(32) NOT NULL"`
	Reason      string        `json:"reason" sql:"type:VARCHAR(1024)"`

	ApproverID      types.ID `json:"approverId"`
	ApproverComment string   `json:"approverComment" sql:"type:VARCHAR(1024)"`

	// set while PENDING, cleared on any terminal transition; unique so that
	// two concurrent creations for the same target cannot both be pending
	PendingKey *string `json:"-" gorm:"unique_index:uni_pending_key"`

	CreateTime time.Time  `json:"createdAt" gorm:"precision:6;not null"`
	UpdateTime time.Time  `json:"updatedAt" gorm:"precision:6;not null"`
	ApprovedAt *time.Time `json:"approvedAt" gorm:"precision:6"`
}

func PendingKeyOf(applicantId types.ID, requestType TargetType, targetId types.ID) *string {
	key := fmt.Sprintf("%d:%s:%d", applicantId, requestType, targetId)
	return &key
}

type PermissionRequestCreation struct {
	RequestType TargetType `json:"requestType" binding:"required"`
	TargetID    types.ID   `json:"targetId" binding:"required"`
	Reason      string     `json:"reason" binding:"lte=1024"`
}

type PermissionRequestApproval struct {
	Comment string `json:"comment" binding:"lte=1024"`
}

type PermissionRequestRejection struct {
	Reason string `json:"reason" binding:"lte=1024"`
}

package bizerror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jinzhu/gorm"
)

type Kind string

const (
	KindNotFound      = Kind("NOT_FOUND")
	KindAuthorization = Kind("AUTHORIZATION")
	KindStateConflict = Kind("STATE_CONFLICT")
	KindValidation    = Kind("VALIDATION")
	KindUnknown       = Kind("")
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

var (
	ErrRequestAlreadyProcessed = &ErrBiz{Kind: KindStateConflict, Code: "permission_request.already_processed",
		Message: "permission request has already been processed"}
	ErrDuplicatePendingRequest = &ErrBiz{Kind: KindStateConflict, Code: "permission_request.duplicated",
		Message: "a pending permission request for this target already exists"}
	ErrNoApproverConfigured = &ErrBiz{Kind: KindStateConflict, Code: "permission_request.no_approver",
		Message: "no approver configured for this target"}
	ErrRoleNotBindable = &ErrBiz{Kind: KindStateConflict, Code: "role.not_bindable",
		Message: "can only bind business roles (BU_BOUNDED or BU_UNBOUNDED)"}
	ErrRoleNotOffered = &ErrBiz{Kind: KindStateConflict, Code: "business_unit.role_not_offered",
		Message: "role is not offered by this business unit"}
	ErrTargetInactive = &ErrBiz{Kind: KindStateConflict, Code: "virtual_group.inactive",
		Message: "virtual group is inactive"}
	ErrConcurrentModification = &ErrBiz{Kind: KindStateConflict, Code: "common.concurrent_modification",
		Message: "concurrent modification"}

	ErrRejectReasonRequired = &ErrBiz{Kind: KindValidation, Code: "permission_request.reject_reason_required",
		Message: "reject reason is required"}
	ErrBuBoundedRoleRequired = &ErrBiz{Kind: KindValidation, Code: "permission_request.bu_bounded_role_required",
		Message: "applying for a business unit requires a BU-Bounded role obtained through a virtual group"}
	ErrUnknownRequestType = &ErrBiz{Kind: KindValidation, Code: "permission_request.unknown_type",
		Message: "unknown request type"}

	ErrTooManyRequests = &ErrBiz{Kind: KindUnknown, Code: "common.too_many_requests",
		Message: "too many requests", status: http.StatusTooManyRequests}
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrBiz is a violated business rule of a known kind.
type ErrBiz struct {
	Kind    Kind
	Code    string
	Message string

	status int
}

func (e *ErrBiz) Error() string {
	return e.Message
}

func (e *ErrBiz) Respond() *BizErrorDetail {
	status := e.status
	if status == 0 {
		status = e.Kind.HttpStatus()
	}
	return &BizErrorDetail{Status: status, Code: e.Code, Message: e.Message}
}

type ErrNotFound struct {
	Entity string
	ID     string
}

func NewErrNotFound(entity string, id fmt.Stringer) *ErrNotFound {
	return &ErrNotFound{Entity: entity, ID: id.String()}
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *ErrNotFound) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusNotFound, Code: "common.record_not_found", Message: e.Error()}
}

// ErrNotApprover means the acting user may not approve for the target.
// TargetDesc is user facing, e.g. "virtual group".
type ErrNotApprover struct {
	TargetDesc string
}

func (e *ErrNotApprover) Error() string {
	return "not an approver for this " + e.TargetDesc
}

func (e *ErrNotApprover) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusForbidden, Code: "security.not_approver", Message: e.Error()}
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: e.Error(), Data: nil}
}

func (k Kind) HttpStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindStateConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf classifies err into one of the workflow error kinds.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var biz *ErrBiz
	if errors.As(err, &biz) {
		return biz.Kind
	}
	var notFound *ErrNotFound
	if errors.As(err, &notFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	var notApprover *ErrNotApprover
	if errors.As(err, &notApprover) || errors.Is(err, ErrForbidden) {
		return KindAuthorization
	}
	var badParam *ErrBadParam
	if errors.As(err, &badParam) {
		return KindValidation
	}
	return KindUnknown
}

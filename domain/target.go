package domain

import "permflow/bizerror"

// TargetType is what a permission request, approver or change log entry points at
type TargetType string

const (
	TargetVirtualGroup = TargetType("VIRTUAL_GROUP")
	TargetBusinessUnit = TargetType("BUSINESS_UNIT")
)

// Desc user facing description of the target type
func (t TargetType) Desc() string {
	switch t {
	case TargetVirtualGroup:
		return "virtual group"
	case TargetBusinessUnit:
		return "business unit"
	default:
		return "target"
	}
}

func (t TargetType) Validate() error {
	switch t {
	case TargetVirtualGroup, TargetBusinessUnit:
		return nil
	default:
		return bizerror.ErrUnknownRequestType
	}
}

package bizerror_test

import (
	"errors"
	"fmt"
	"net/http"
	"permflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Errors", func() {
	Describe("ErrBadParam", func() {
		Describe("Error", func() {
			It("should return default message if cause is nil", func() {
				err := bizerror.ErrBadParam{}
				Expect(err.Error()).To(Equal("common.bad_param"))
			})
			It("should invoke the Error() function of cause property if cause is not nil", func() {
				err := bizerror.ErrBadParam{Cause: bizerror.ErrForbidden}
				Expect(err.Error()).To(Equal("forbidden"))
			})
		})
	})

	Describe("ErrNotFound", func() {
		It("should describe entity and id", func() {
			err := bizerror.NewErrNotFound("permission request", types.ID(123))
			Expect(err.Error()).To(Equal("permission request 123 not found"))
			Expect(err.Respond().Status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("ErrNotApprover", func() {
		It("should name the target type in message", func() {
			err := &bizerror.ErrNotApprover{TargetDesc: "business unit"}
			Expect(err.Error()).To(Equal("not an approver for this business unit"))
			Expect(err.Respond().Status).To(Equal(http.StatusForbidden))
		})
	})

	Describe("KindOf", func() {
		It("should classify errors into kinds", func() {
			Expect(bizerror.KindOf(nil)).To(Equal(bizerror.KindUnknown))
			Expect(bizerror.KindOf(errors.New("x"))).To(Equal(bizerror.KindUnknown))

			Expect(bizerror.KindOf(bizerror.NewErrNotFound("role", types.ID(1)))).To(Equal(bizerror.KindNotFound))
			Expect(bizerror.KindOf(gorm.ErrRecordNotFound)).To(Equal(bizerror.KindNotFound))

			Expect(bizerror.KindOf(&bizerror.ErrNotApprover{TargetDesc: "virtual group"})).To(Equal(bizerror.KindAuthorization))
			Expect(bizerror.KindOf(bizerror.ErrForbidden)).To(Equal(bizerror.KindAuthorization))

			Expect(bizerror.KindOf(bizerror.ErrRequestAlreadyProcessed)).To(Equal(bizerror.KindStateConflict))
			Expect(bizerror.KindOf(bizerror.ErrDuplicatePendingRequest)).To(Equal(bizerror.KindStateConflict))
			Expect(bizerror.KindOf(bizerror.ErrRoleNotBindable)).To(Equal(bizerror.KindStateConflict))

			Expect(bizerror.KindOf(bizerror.ErrRejectReasonRequired)).To(Equal(bizerror.KindValidation))
			Expect(bizerror.KindOf(bizerror.ErrBuBoundedRoleRequired)).To(Equal(bizerror.KindValidation))
			Expect(bizerror.KindOf(&bizerror.ErrBadParam{})).To(Equal(bizerror.KindValidation))
		})

		It("should see through wrapping", func() {
			wrapped := fmt.Errorf("approve: %w", bizerror.ErrRequestAlreadyProcessed)
			Expect(bizerror.KindOf(wrapped)).To(Equal(bizerror.KindStateConflict))
			Expect(errors.Is(wrapped, bizerror.ErrRequestAlreadyProcessed)).To(BeTrue())
		})
	})

	Describe("Respond", func() {
		It("should map kinds to http status", func() {
			Expect(bizerror.ErrRequestAlreadyProcessed.Respond().Status).To(Equal(http.StatusConflict))
			Expect(bizerror.ErrRejectReasonRequired.Respond().Status).To(Equal(http.StatusBadRequest))
			Expect(bizerror.ErrTooManyRequests.Respond().Status).To(Equal(http.StatusTooManyRequests))
			Expect(bizerror.ErrRequestAlreadyProcessed.Respond().Code).To(Equal("permission_request.already_processed"))
		})
	})
})

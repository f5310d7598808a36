package authority_test

import (
	"permflow/authority"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Permissions", func() {
	Describe("HasRole", func() {
		It("should work correctly", func() {
			Expect(authority.Permissions(nil).HasRole("aaa")).To(BeFalse())
			Expect(authority.Permissions{}.HasRole("aaa")).To(BeFalse())
			Expect(authority.Permissions{"bbb", "ccc"}.HasRole("aaa")).To(BeFalse())
			Expect(authority.Permissions{"bbb", "ccc"}.HasRole("CCC")).To(BeTrue())
		})
	})

	Describe("HasRolePrefix", func() {
		It("should work correctly", func() {
			Expect(authority.Permissions{}.HasRolePrefix("aaa")).To(BeFalse())
			Expect(authority.Permissions{"bbb", "ccc"}.HasRolePrefix("aaa")).To(BeFalse())
			Expect(authority.Permissions{"bbb_123", "ccc_123"}.HasRolePrefix("ccc")).To(BeTrue())
		})
	})

	Describe("IsSystemAdmin", func() {
		It("should detect system admin permission", func() {
			Expect(authority.Permissions{"guest"}.IsSystemAdmin()).To(BeFalse())
			Expect(authority.Permissions{"guest", authority.SystemAdmin}.IsSystemAdmin()).To(BeTrue())
		})
	})
})

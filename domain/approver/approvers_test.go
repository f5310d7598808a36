package approver_test

import (
	"net/http"
	"net/http/httptest"
	"permflow/authority"
	"permflow/bizerror"
	"permflow/domain"
	"permflow/domain/approver"
	"permflow/testinfra"
	"strings"
	"testing"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func setup(t *testing.T) *testinfra.TestDatabase {
	db := testinfra.StartTestDatabase("permflow")
	Expect(db.DS.GormDB().AutoMigrate(&approver.Approver{}).Error).To(BeNil())
	return db
}

func TestResolver(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should resolve approvers per target", func(t *testing.T) {
		testDatabase := setup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		db := testDatabase.DS.GormDB()

		_, err := approver.SaveApprover(approver.ApproverCreation{TargetType: domain.TargetVirtualGroup, TargetID: 10, UserID: 100}, 1, db)
		Expect(err).To(BeNil())
		// repeat is a no-op
		_, err = approver.SaveApprover(approver.ApproverCreation{TargetType: domain.TargetVirtualGroup, TargetID: 10, UserID: 100}, 1, db)
		Expect(err).To(BeNil())

		r := approver.NewResolver()
		ok, err := r.IsApprover(100, domain.TargetVirtualGroup, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		// same id, other target type
		ok, err = r.IsApprover(100, domain.TargetBusinessUnit, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		ok, err = r.IsApprover(200, domain.TargetVirtualGroup, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		ok, err = r.HasApprover(domain.TargetVirtualGroup, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		ok, err = r.HasApprover(domain.TargetBusinessUnit, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		records, err := approver.ListApprovers(approver.ApproverQuery{TargetType: domain.TargetVirtualGroup, TargetID: 10}, db)
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
		Expect(records[0].UserID).To(Equal(types.ID(100)))
		Expect(records[0].CreatorID).To(Equal(types.ID(1)))

		targets, err := approver.ListApproverTargets(100, domain.TargetVirtualGroup, db)
		Expect(err).To(BeNil())
		Expect(targets).To(Equal([]types.ID{10}))
		targets, err = approver.ListApproverTargets(100, domain.TargetBusinessUnit, db)
		Expect(err).To(BeNil())
		Expect(targets).To(BeEmpty())

		Expect(approver.DeleteApprover(domain.TargetVirtualGroup, 10, 100, db)).To(BeNil())
		ok, err = r.HasApprover(domain.TargetVirtualGroup, 10, db)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	t.Run("should reject unknown target type", func(t *testing.T) {
		testDatabase := setup(t)
		defer testinfra.StopTestDatabase(testDatabase)

		_, err := approver.SaveApprover(approver.ApproverCreation{TargetType: "PROJECT", TargetID: 10, UserID: 100}, 1,
			testDatabase.DS.GormDB())
		Expect(err).To(Equal(bizerror.ErrUnknownRequestType))
	})
}

func TestApproversRestAPI(t *testing.T) {
	RegisterTestingT(t)

	t.Run("only system admin can grant approvers", func(t *testing.T) {
		testDatabase := setup(t)
		defer testinfra.StopTestDatabase(testDatabase)

		router := gin.Default()
		router.Use(bizerror.ErrorHandling())
		approver.RegisterApproversRestAPI(router, testDatabase.DS, testinfra.InjectSession(testinfra.BuildSession(5, "guest")))

		body := `{"targetType":"VIRTUAL_GROUP","targetId":"10","userId":"100"}`
		req := httptest.NewRequest(http.MethodPost, approver.PathApprovers, strings.NewReader(body))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))

		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		approver.RegisterApproversRestAPI(router, testDatabase.DS, testinfra.InjectSession(testinfra.BuildSession(1, authority.SystemAdmin)))

		req = httptest.NewRequest(http.MethodPost, approver.PathApprovers, strings.NewReader(body))
		status, respBody, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(respBody).To(ContainSubstring(`"userId":"100"`))

		req = httptest.NewRequest(http.MethodGet, approver.PathApprovers+"?targetType=VIRTUAL_GROUP&targetId=10", nil)
		status, respBody, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(respBody).To(ContainSubstring(`"targetType":"VIRTUAL_GROUP"`))

		req = httptest.NewRequest(http.MethodDelete, approver.PathApprovers+"?targetType=VIRTUAL_GROUP&targetId=10&userId=100", nil)
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		ok, err := approver.NewResolver().HasApprover(domain.TargetVirtualGroup, 10, testDatabase.DS.GormDB())
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	t.Run("should validate query parameters", func(t *testing.T) {
		router := gin.Default()
		router.Use(bizerror.ErrorHandling())
		approver.RegisterApproversRestAPI(router, nil)

		req := httptest.NewRequest(http.MethodGet, approver.PathApprovers, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"common.bad_param"`))
	})
}

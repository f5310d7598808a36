package effective_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"permflow/bizerror"
	"permflow/domain/bu"
	"permflow/domain/effective"
	"permflow/domain/preference"
	"permflow/domain/role"
	"permflow/domain/vgroup"
	"permflow/testinfra"
	"strings"
	"testing"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

const user = types.ID(10)

type fixture struct {
	db        *testinfra.TestDatabase
	evaluator *effective.Evaluator

	boundedGroup   *vgroup.VirtualGroup
	unboundedGroup *vgroup.VirtualGroup
	bounded        *role.Role
	unbounded      *role.Role
	bu1            *bu.BusinessUnit
	bu2            *bu.BusinessUnit
}

func setup(t *testing.T) *fixture {
	testDatabase := testinfra.StartTestDatabase("permflow")
	db := testDatabase.DS.GormDB()
	Expect(db.AutoMigrate(&role.Role{}, &vgroup.VirtualGroup{}, &vgroup.VirtualGroupMember{}, &vgroup.VirtualGroupRole{},
		&bu.BusinessUnit{}, &bu.UserBusinessUnit{}, &bu.UserBusinessUnitRole{}, &preference.UserPreference{}).Error).To(BeNil())

	f := &fixture{db: testDatabase}
	directory := role.NewDirectory(10)
	f.evaluator = effective.NewEvaluator(testDatabase.DS, directory)

	var err error
	f.bounded, err = role.CreateRole(role.RoleCreation{Name: "r1", Type: role.RoleTypeBuBounded}, db)
	Expect(err).To(BeNil())
	f.unbounded, err = role.CreateRole(role.RoleCreation{Name: "r2", Type: role.RoleTypeBuUnbounded}, db)
	Expect(err).To(BeNil())
	f.boundedGroup, err = vgroup.CreateVirtualGroup(vgroup.VirtualGroupCreation{Name: "vg-1"}, 1, db)
	Expect(err).To(BeNil())
	f.unboundedGroup, err = vgroup.CreateVirtualGroup(vgroup.VirtualGroupCreation{Name: "vg-2"}, 1, db)
	Expect(err).To(BeNil())
	Expect(vgroup.BindRoleTx(f.boundedGroup.ID, f.bounded.ID, directory, db)).To(BeNil())
	Expect(vgroup.BindRoleTx(f.unboundedGroup.ID, f.unbounded.ID, directory, db)).To(BeNil())
	f.bu1, err = bu.CreateBusinessUnit(bu.BusinessUnitCreation{Name: "bu-1"}, 1, db)
	Expect(err).To(BeNil())
	f.bu2, err = bu.CreateBusinessUnit(bu.BusinessUnitCreation{Name: "bu-2"}, 1, db)
	Expect(err).To(BeNil())
	return f
}

func teardown(t *testing.T, f *fixture) {
	if f != nil {
		testinfra.StopTestDatabase(f.db)
	}
}

func (f *fixture) gormDB() *gorm.DB {
	return f.db.DS.GormDB()
}

func (f *fixture) join(groupId types.ID) {
	_, err := vgroup.CreateMember(groupId, user, f.gormDB())
	Expect(err).To(BeNil())
}

func TestUnboundedRoles(t *testing.T) {
	RegisterTestingT(t)

	t.Run("no virtual group membership means no roles", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)

		roles, err := f.evaluator.GetUserBuUnboundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(roles).To(BeEmpty())
		ok, err := f.evaluator.HoldsBuBoundedRole(user, f.gormDB())
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	t.Run("unbounded roles are effective everywhere", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		f.join(f.unboundedGroup.ID)
		f.join(f.boundedGroup.ID)

		roles, err := f.evaluator.GetUserBuUnboundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(len(roles)).To(Equal(1))
		Expect(roles[0].ID).To(Equal(f.unbounded.ID))

		for _, buId := range []types.ID{f.bu1.ID, f.bu2.ID, 404} {
			ok, err := f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.unbounded.ID, buId)
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
		}
	})
}

func TestBoundedRoles(t *testing.T) {
	RegisterTestingT(t)

	t.Run("bounded roles activate on the first business unit membership", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		f.join(f.boundedGroup.ID)

		ok, err := f.evaluator.HoldsBuBoundedRole(user, f.gormDB())
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		unactivated, err := f.evaluator.GetUnactivatedBuBoundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(len(unactivated)).To(Equal(1))
		Expect(unactivated[0].ID).To(Equal(f.bounded.ID))
		activated, err := f.evaluator.GetActivatedBuBoundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(activated).To(BeEmpty())

		ok, err = f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu1.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		_, err = bu.CreateMembership(user, f.bu1.ID, f.gormDB())
		Expect(err).To(BeNil())

		unactivated, err = f.evaluator.GetUnactivatedBuBoundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(unactivated).To(BeEmpty())
		activated, err = f.evaluator.GetActivatedBuBoundedRoles(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(len(activated)).To(Equal(1))

		ok, err = f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu1.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		// effectiveness is scoped to the joined business unit only
		ok, err = f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu2.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	t.Run("leaving the virtual group revokes the inherited role", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		f.join(f.boundedGroup.ID)
		_, err := bu.CreateMembership(user, f.bu1.ID, f.gormDB())
		Expect(err).To(BeNil())

		Expect(vgroup.DeleteMember(f.boundedGroup.ID, user, f.gormDB())).To(BeNil())
		ok, err := f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu1.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	t.Run("roles not reachable are not effective unless explicitly granted", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		_, err := bu.CreateMembership(user, f.bu1.ID, f.gormDB())
		Expect(err).To(BeNil())

		ok, err := f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu1.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		_, err = bu.CreateUserRole(user, f.bu1.ID, f.bounded.ID, f.gormDB())
		Expect(err).To(BeNil())
		ok, err = f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu1.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		ok, err = f.evaluator.HasRoleInBusinessUnit(context.Background(), user, f.bounded.ID, f.bu2.ID)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})
}

func TestReminder(t *testing.T) {
	RegisterTestingT(t)

	t.Run("reminder follows unactivated roles and the opt out preference", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)

		show, err := f.evaluator.ShouldShowBuApplicationReminder(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(show).To(BeFalse())

		f.join(f.boundedGroup.ID)
		// no preference row means show
		show, err = f.evaluator.ShouldShowBuApplicationReminder(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(show).To(BeTrue())

		Expect(f.evaluator.SetDontRemindPreference(context.Background(), user, true)).To(BeNil())
		show, err = f.evaluator.ShouldShowBuApplicationReminder(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(show).To(BeFalse())

		p, err := preference.Get(user, effective.KeyDontRemindBuApplication, f.gormDB())
		Expect(err).To(BeNil())
		Expect(p.Value).To(Equal("true"))

		// false behaves like an absent row
		Expect(f.evaluator.SetDontRemindPreference(context.Background(), user, false)).To(BeNil())
		show, err = f.evaluator.ShouldShowBuApplicationReminder(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(show).To(BeTrue())
		p, err = preference.Get(user, effective.KeyDontRemindBuApplication, f.gormDB())
		Expect(err).To(BeNil())
		Expect(p.Value).To(Equal("false"))

		_, err = bu.CreateMembership(user, f.bu1.ID, f.gormDB())
		Expect(err).To(BeNil())
		show, err = f.evaluator.ShouldShowBuApplicationReminder(context.Background(), user)
		Expect(err).To(BeNil())
		Expect(show).To(BeFalse())
	})
}

func TestEvaluatorRestAPI(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should serve the current user's roles and reminder", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		f.join(f.boundedGroup.ID)
		f.join(f.unboundedGroup.ID)

		router := gin.Default()
		router.Use(bizerror.ErrorHandling())
		effective.RegisterEvaluatorRestAPI(router, f.evaluator, testinfra.InjectSession(testinfra.BuildSession(user)))

		req := httptest.NewRequest(http.MethodGet, effective.PathMyRoles+"/unbounded", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"name":"r2"`))

		req = httptest.NewRequest(http.MethodGet, effective.PathMyRoles+"/unactivated", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"name":"r1"`))

		req = httptest.NewRequest(http.MethodGet, effective.PathMyRoles+"/activated", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("[]"))

		req = httptest.NewRequest(http.MethodGet,
			effective.PathMyRoles+"/"+f.bounded.ID.String()+"/business-units/"+f.bu1.ID.String(), nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"effective":false}`))

		req = httptest.NewRequest(http.MethodGet, effective.PathMyBuReminder, nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"show":true}`))

		req = httptest.NewRequest(http.MethodPut, effective.PathMyBuReminder, strings.NewReader(`{}`))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))

		req = httptest.NewRequest(http.MethodPut, effective.PathMyBuReminder, strings.NewReader(`{"dontRemind":true}`))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		req = httptest.NewRequest(http.MethodGet, effective.PathMyBuReminder, nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"show":false}`))
	})
}

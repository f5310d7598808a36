package member

import (
	"net/http"
	"permflow/bizerror"
	"permflow/common"
	"permflow/domain"
	"permflow/domain/approver"
	"permflow/persistence"
	"permflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathVirtualGroupMembers = "/v1/virtual-groups/:id/members"
	PathBusinessUnitMembers = "/v1/business-units/:id/members"
)

type VirtualGroupMemberCreation struct {
	UserID types.ID `json:"userId" binding:"required"`
}

type BusinessUnitMemberCreation struct {
	UserID  types.ID   `json:"userId" binding:"required"`
	RoleIDs []types.ID `json:"roleIds"`
}

type membersAPI struct {
	dataSource *persistence.DataSourceManager
	manager    ManagerTraits
	approvers  approver.ResolverTraits
}

func RegisterMembersRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, manager ManagerTraits,
	approvers approver.ResolverTraits, middleWares ...gin.HandlerFunc) {
	api := &membersAPI{dataSource: ds, manager: manager, approvers: approvers}

	vg := r.Group(PathVirtualGroupMembers, middleWares...)
	vg.POST("", api.handleAddVirtualGroupMember)
	vg.DELETE("/me", api.handleExitVirtualGroup)
	vg.DELETE("/:userId", api.handleRemoveVirtualGroupMember)

	b := r.Group(PathBusinessUnitMembers, middleWares...)
	b.POST("", api.handleAddBusinessUnitMember)
	b.DELETE("/me", api.handleExitBusinessUnit)
	b.DELETE("/:userId", api.handleRemoveBusinessUnitMember)
	b.DELETE("/:userId/roles/:roleId", api.handleRemoveBusinessUnitRole)
}

func (a *membersAPI) handleAddVirtualGroupMember(c *gin.Context) {
	groupId := common.BindingPathID(c, "id")
	body := VirtualGroupMemberCreation{}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	a.mustManage(sec, domain.TargetVirtualGroup, groupId)
	if err := a.manager.AddUserToVirtualGroup(sec.TraceContext(), body.UserID, groupId, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func (a *membersAPI) handleExitVirtualGroup(c *gin.Context) {
	groupId := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	if err := a.manager.ExitVirtualGroup(sec.TraceContext(), groupId, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (a *membersAPI) handleRemoveVirtualGroupMember(c *gin.Context) {
	groupId := common.BindingPathID(c, "id")
	userId := common.BindingPathID(c, "userId")
	sec := session.ExtractSessionFromGinContext(c)
	if err := a.manager.RemoveVirtualGroupMember(sec.TraceContext(), groupId, userId, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (a *membersAPI) handleAddBusinessUnitMember(c *gin.Context) {
	buId := common.BindingPathID(c, "id")
	body := BusinessUnitMemberCreation{}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	a.mustManage(sec, domain.TargetBusinessUnit, buId)
	if err := a.manager.AddUserToBusinessUnitWithRoles(sec.TraceContext(), body.UserID, buId, body.RoleIDs, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

// handleExitBusinessUnit exits the whole business unit, or only the roles given by roleId query parameters
func (a *membersAPI) handleExitBusinessUnit(c *gin.Context) {
	buId := common.BindingPathID(c, "id")
	roleIds := common.BindingQueryIDs(c, "roleId")
	sec := session.ExtractSessionFromGinContext(c)
	var err error
	if len(roleIds) > 0 {
		err = a.manager.ExitBusinessUnitRoles(sec.TraceContext(), buId, sec.Identity.ID, roleIds)
	} else {
		err = a.manager.ExitBusinessUnit(sec.TraceContext(), buId, sec.Identity.ID)
	}
	if err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (a *membersAPI) handleRemoveBusinessUnitMember(c *gin.Context) {
	buId := common.BindingPathID(c, "id")
	userId := common.BindingPathID(c, "userId")
	sec := session.ExtractSessionFromGinContext(c)
	if err := a.manager.RemoveBusinessUnitMember(sec.TraceContext(), buId, userId, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (a *membersAPI) handleRemoveBusinessUnitRole(c *gin.Context) {
	buId := common.BindingPathID(c, "id")
	userId := common.BindingPathID(c, "userId")
	roleId := common.BindingPathID(c, "roleId")
	sec := session.ExtractSessionFromGinContext(c)
	if err := a.manager.RemoveBusinessUnitRole(sec.TraceContext(), buId, userId, roleId, sec.Identity.ID); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

// mustManage direct additions are open to approvers of the target and to system admins
func (a *membersAPI) mustManage(sec *session.Session, targetType domain.TargetType, targetId types.ID) {
	if sec.Perms.IsSystemAdmin() {
		return
	}
	ok, err := a.approvers.IsApprover(sec.Identity.ID, targetType, targetId, a.dataSource.GormDBWithContext(sec.TraceContext()))
	if err != nil {
		panic(err)
	}
	if !ok {
		panic(&bizerror.ErrNotApprover{TargetDesc: targetType.Desc()})
	}
}

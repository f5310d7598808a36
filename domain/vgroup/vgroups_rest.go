package vgroup

import (
	"net/http"
	"permflow/bizerror"
	"permflow/common"
	"permflow/persistence"
	"permflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jinzhu/gorm"
)

var (
	PathVirtualGroups = "/v1/virtual-groups"
)

type RoleBinding struct {
	RoleID types.ID `json:"roleId" binding:"required"`
}

type virtualGroupsAPI struct {
	dataSource *persistence.DataSourceManager
	bindings   BindingManagerTraits
}

func RegisterVirtualGroupsRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, bindings BindingManagerTraits,
	middleWares ...gin.HandlerFunc) {
	api := &virtualGroupsAPI{dataSource: ds, bindings: bindings}
	g := r.Group(PathVirtualGroups, middleWares...)
	g.POST("", api.handleCreate)
	g.GET("/:id", api.handleDetail)
	g.GET("/:id/members", api.handleListMembers)
	g.PUT("/:id/role", api.handleBindRole)
	g.GET("/:id/role", api.handleGetBoundRole)
	g.DELETE("/:id/role", api.handleUnbindRole)
}

func (a *virtualGroupsAPI) handleCreate(c *gin.Context) {
	creation := VirtualGroupCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	var g *VirtualGroup
	err := a.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		g, err = CreateVirtualGroup(creation, sec.Identity.ID, tx)
		return err
	})
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, g)
}

func (a *virtualGroupsAPI) handleDetail(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	g, err := FindVirtualGroup(id, a.dataSource.GormDBWithContext(sec.TraceContext()))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, g)
}

func (a *virtualGroupsAPI) handleListMembers(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	db := a.dataSource.GormDBWithContext(sec.TraceContext())
	if _, err := FindVirtualGroup(id, db); err != nil {
		panic(err)
	}
	members, err := ListMembers(id, db)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, members)
}

func (a *virtualGroupsAPI) handleBindRole(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	body := RoleBinding{}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	if err := a.bindings.BindRole(sec.TraceContext(), id, body.RoleID); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func (a *virtualGroupsAPI) handleGetBoundRole(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.bindings.GetBoundRole(sec.TraceContext(), id)
	if err != nil {
		panic(err)
	}
	if r == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a *virtualGroupsAPI) handleUnbindRole(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	if err := a.bindings.UnbindRole(sec.TraceContext(), id); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

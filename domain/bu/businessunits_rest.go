package bu

import (
	"net/http"
	"permflow/bizerror"
	"permflow/common"
	"permflow/domain/role"
	"permflow/persistence"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	PathBusinessUnits = "/v1/business-units"
)

type businessUnitsAPI struct {
	dataSource *persistence.DataSourceManager
	roles      role.DirectoryTraits
}

func RegisterBusinessUnitsRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, roles role.DirectoryTraits,
	middleWares ...gin.HandlerFunc) {
	api := &businessUnitsAPI{dataSource: ds, roles: roles}
	g := r.Group(PathBusinessUnits, middleWares...)
	g.POST("", api.handleCreate)
	g.GET("/:id", api.handleDetail)
	g.GET("/:id/members", api.handleListMembers)
	g.GET("/:id/roles", api.handleListOfferedRoles)
	g.PUT("/:id/roles/:roleId", api.handleOfferRole)
	g.DELETE("/:id/roles/:roleId", api.handleWithdrawRole)
}

func (a *businessUnitsAPI) handleCreate(c *gin.Context) {
	creation := BusinessUnitCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	b, err := CreateBusinessUnit(creation, sec.Identity.ID, a.dataSource.GormDBWithContext(sec.TraceContext()))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, b)
}

func (a *businessUnitsAPI) handleDetail(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	b, err := FindBusinessUnit(id, a.dataSource.GormDBWithContext(sec.TraceContext()))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, b)
}

func (a *businessUnitsAPI) handleListMembers(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	db := a.dataSource.GormDBWithContext(sec.TraceContext())
	if _, err := FindBusinessUnit(id, db); err != nil {
		panic(err)
	}
	members, err := ListMembers(id, db)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, members)
}

func (a *businessUnitsAPI) handleListOfferedRoles(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	db := a.dataSource.GormDBWithContext(sec.TraceContext())
	if _, err := FindBusinessUnit(id, db); err != nil {
		panic(err)
	}
	ids, err := ListOfferedRoleIds(id, db)
	if err != nil {
		panic(err)
	}
	roles, err := a.roles.FindRolesByIds(ids, db)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, roles)
}

func (a *businessUnitsAPI) handleOfferRole(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	roleId := common.BindingPathID(c, "roleId")
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	err := a.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		if _, err := FindBusinessUnit(id, tx); err != nil {
			return err
		}
		r, err := a.roles.FindRole(roleId, tx)
		if err != nil {
			return err
		}
		if !role.IsBusinessRole(r) {
			return bizerror.ErrRoleNotBindable
		}
		return SaveOfferedRole(id, roleId, tx)
	})
	if err != nil {
		panic(err)
	}
	logrus.WithFields(logrus.Fields{"businessUnitId": id, "roleId": roleId}).Info("business unit role bound")
	c.Status(http.StatusOK)
}

func (a *businessUnitsAPI) handleWithdrawRole(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	roleId := common.BindingPathID(c, "roleId")
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	if err := DeleteOfferedRole(id, roleId, a.dataSource.GormDBWithContext(sec.TraceContext())); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

package role

import (
	"net/http"
	"permflow/bizerror"
	"permflow/persistence"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathRoles = "/v1/roles"
)

func RegisterRolesRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathRoles, middleWares...)
	g.GET("", func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		roles, err := ListRoles(ds.GormDBWithContext(sec.TraceContext()))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, roles)
	})
	g.POST("", func(c *gin.Context) {
		creation := RoleCreation{}
		if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		sec := session.ExtractSessionFromGinContext(c)
		if !sec.Perms.IsSystemAdmin() {
			panic(bizerror.ErrForbidden)
		}
		r, err := CreateRole(creation, ds.GormDBWithContext(sec.TraceContext()))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusCreated, r)
	})
}

package changelog

import (
	"net/http"
	"permflow/bizerror"
	"permflow/persistence"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathChangeLogs = "/v1/member-change-logs"
)

// RegisterChangeLogsRestAPI the audit trail is visible to system admins, other users see their own entries
func RegisterChangeLogsRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathChangeLogs, middleWares...)
	g.GET("", func(c *gin.Context) {
		query := ChangeLogQuery{}
		if err := c.MustBindWith(&query, binding.Query); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		if query.TargetType != "" {
			if err := query.TargetType.Validate(); err != nil {
				panic(err)
			}
		}
		sec := session.ExtractSessionFromGinContext(c)
		if !sec.Perms.IsSystemAdmin() {
			query.UserID = sec.Identity.ID
		}
		logs, err := QueryChangeLogs(query, ds.GormDBWithContext(sec.TraceContext()))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, logs)
	})
}

package request

import (
	"net/http"
	"permflow/bizerror"
	"permflow/common"
	"permflow/domain"
	"permflow/infra/ratelimit"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathPermissionRequests = "/v1/permission-requests"
)

type requestsAPI struct {
	manager ManagerTraits
}

// RegisterPermissionRequestsRestAPI limiter is optional, when present it throttles request creation per user
func RegisterPermissionRequestsRestAPI(r *gin.Engine, manager ManagerTraits, limiter *ratelimit.Limiter,
	middleWares ...gin.HandlerFunc) {
	api := &requestsAPI{manager: manager}
	g := r.Group(PathPermissionRequests, middleWares...)

	if limiter != nil {
		g.POST("", limiter.PerUser(), api.handleCreate)
	} else {
		g.POST("", api.handleCreate)
	}
	g.GET("", api.handleQueryMine)
	g.GET("/pending", api.handleQueryPending)
	g.GET("/:id", api.handleDetail)
	g.PUT("/:id/approve", api.handleApprove)
	g.PUT("/:id/reject", api.handleReject)
	g.PUT("/:id/cancel", api.handleCancel)
}

func (a *requestsAPI) handleCreate(c *gin.Context) {
	creation := domain.PermissionRequestCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.manager.CreateRequest(sec.TraceContext(), sec.Identity.ID, creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, r)
}

func (a *requestsAPI) handleQueryMine(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	records, err := a.manager.QueryMyRequests(sec.TraceContext(), sec.Identity.ID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func (a *requestsAPI) handleQueryPending(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	records, err := a.manager.QueryPendingForApprover(sec.TraceContext(), sec.Identity.ID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func (a *requestsAPI) handleDetail(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.manager.Detail(id, sec)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func (a *requestsAPI) handleApprove(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	body := domain.PermissionRequestApproval{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.manager.Approve(sec.TraceContext(), id, sec.Identity.ID, body.Comment)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func (a *requestsAPI) handleReject(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	body := domain.PermissionRequestRejection{}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.manager.Reject(sec.TraceContext(), id, sec.Identity.ID, body.Reason)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func (a *requestsAPI) handleCancel(c *gin.Context) {
	id := common.BindingPathID(c, "id")
	sec := session.ExtractSessionFromGinContext(c)
	r, err := a.manager.Cancel(sec.TraceContext(), id, sec.Identity.ID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

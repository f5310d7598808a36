package effective

import (
	"net/http"
	"permflow/bizerror"
	"permflow/common"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathMyRoles      = "/v1/me/roles"
	PathMyBuReminder = "/v1/me/bu-reminder"
)

type Effectiveness struct {
	Effective bool `json:"effective"`
}

type Reminder struct {
	Show bool `json:"show"`
}

type ReminderPreference struct {
	DontRemind *bool `json:"dontRemind" binding:"required"`
}

func RegisterEvaluatorRestAPI(r *gin.Engine, evaluator EvaluatorTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathMyRoles, middleWares...)
	g.GET("/unbounded", func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		roles, err := evaluator.GetUserBuUnboundedRoles(sec.TraceContext(), sec.Identity.ID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, roles)
	})
	g.GET("/unactivated", func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		roles, err := evaluator.GetUnactivatedBuBoundedRoles(sec.TraceContext(), sec.Identity.ID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, roles)
	})
	g.GET("/activated", func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		roles, err := evaluator.GetActivatedBuBoundedRoles(sec.TraceContext(), sec.Identity.ID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, roles)
	})
	g.GET("/:roleId/business-units/:buId", func(c *gin.Context) {
		roleId := common.BindingPathID(c, "roleId")
		buId := common.BindingPathID(c, "buId")
		sec := session.ExtractSessionFromGinContext(c)
		ok, err := evaluator.HasRoleInBusinessUnit(sec.TraceContext(), sec.Identity.ID, roleId, buId)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, &Effectiveness{Effective: ok})
	})

	reminder := r.Group(PathMyBuReminder, middleWares...)
	reminder.GET("", func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		show, err := evaluator.ShouldShowBuApplicationReminder(sec.TraceContext(), sec.Identity.ID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, &Reminder{Show: show})
	})
	reminder.PUT("", func(c *gin.Context) {
		body := ReminderPreference{}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		sec := session.ExtractSessionFromGinContext(c)
		if err := evaluator.SetDontRemindPreference(sec.TraceContext(), sec.Identity.ID, *body.DontRemind); err != nil {
			panic(err)
		}
		c.Status(http.StatusOK)
	})
}

package approver

import (
	"net/http"
	"permflow/bizerror"
	"permflow/persistence"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	PathApprovers = "/v1/approvers"
)

type approversAPI struct {
	dataSource *persistence.DataSourceManager
}

func RegisterApproversRestAPI(r *gin.Engine, ds *persistence.DataSourceManager, middleWares ...gin.HandlerFunc) {
	api := &approversAPI{dataSource: ds}
	g := r.Group(PathApprovers, middleWares...)
	g.GET("", api.handleQueryApprovers)
	g.POST("", api.handleCreateApprover)
	g.DELETE("", api.handleDeleteApprover)
}

func (a *approversAPI) handleQueryApprovers(c *gin.Context) {
	query := ApproverQuery{}
	if err := c.MustBindWith(&query, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := query.TargetType.Validate(); err != nil {
		panic(err)
	}
	sec := session.ExtractSessionFromGinContext(c)
	records, err := ListApprovers(query, a.dataSource.GormDBWithContext(sec.TraceContext()))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func (a *approversAPI) handleCreateApprover(c *gin.Context) {
	creation := ApproverCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	var record *Approver
	err := a.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = SaveApprover(creation, sec.Identity.ID, tx)
		return err
	})
	if err != nil {
		panic(err)
	}
	logrus.WithFields(logrus.Fields{"targetType": creation.TargetType, "targetId": creation.TargetID,
		"userId": creation.UserID, "operatorId": sec.Identity.ID}).Info("approver granted")
	c.JSON(http.StatusOK, record)
}

func (a *approversAPI) handleDeleteApprover(c *gin.Context) {
	deletion := ApproverCreation{}
	if err := c.MustBindWith(&deletion, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.IsSystemAdmin() {
		panic(bizerror.ErrForbidden)
	}
	if err := deletion.TargetType.Validate(); err != nil {
		panic(err)
	}
	if err := DeleteApprover(deletion.TargetType, deletion.TargetID, deletion.UserID,
		a.dataSource.GormDBWithContext(sec.TraceContext())); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"permflow/bizerror"
	"permflow/common"
	"permflow/domain/approver"
	"permflow/domain/bu"
	"permflow/domain/changelog"
	"permflow/domain/effective"
	"permflow/domain/member"
	"permflow/domain/request"
	"permflow/domain/role"
	"permflow/domain/vgroup"
	"permflow/infra/metrics"
	"permflow/infra/ratelimit"
	"permflow/infra/tracing"
	"permflow/persistence"
	"permflow/session"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const ShutdownTimeout = 3 * time.Second

// Components are the engines the http surface is built over
type Components struct {
	DataSource *persistence.DataSourceManager
	Roles      role.DirectoryTraits
	Approvers  approver.ResolverTraits
	Bindings   vgroup.BindingManagerTraits
	Members    member.ManagerTraits
	Requests   request.ManagerTraits
	Evaluator  effective.EvaluatorTraits
	Limiter    *ratelimit.Limiter

	// SessionIssuerSecret guards session issuing, empty keeps it closed
	SessionIssuerSecret string
}

func NewComponents(ds *persistence.DataSourceManager, roleCacheSize, requestRatePerMinute int) *Components {
	roles := role.NewDirectory(roleCacheSize)
	approvers := approver.NewResolver()
	evaluator := effective.NewEvaluator(ds, roles)
	members := member.NewManager(ds, approvers, roles)
	return &Components{
		DataSource: ds,
		Roles:      roles,
		Approvers:  approvers,
		Bindings:   vgroup.NewBindingManager(ds, roles),
		Members:    members,
		Requests:   request.NewManager(ds, approvers, evaluator, members),
		Evaluator:  evaluator,
		Limiter:    ratelimit.NewLimiter(requestRatePerMinute),
	}
}

// BuildEngine assembles middlewares and every route. Business apis sit behind authFilter.
func BuildEngine(c *Components, authFilter gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), tracing.TracingIngress(), bizerror.ErrorHandling())

	engine.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, common.ServiceName)
	})
	metrics.RegisterMetricsAPI(engine)

	session.RegisterSessionRestAPI(engine, authFilter)
	session.RegisterSessionsRestAPI(engine, c.SessionIssuerSecret)
	role.RegisterRolesRestAPI(engine, c.DataSource, authFilter)
	approver.RegisterApproversRestAPI(engine, c.DataSource, authFilter)
	vgroup.RegisterVirtualGroupsRestAPI(engine, c.DataSource, c.Bindings, authFilter)
	bu.RegisterBusinessUnitsRestAPI(engine, c.DataSource, c.Roles, authFilter)
	member.RegisterMembersRestAPI(engine, c.DataSource, c.Members, c.Approvers, authFilter)
	request.RegisterPermissionRequestsRestAPI(engine, c.Requests, c.Limiter, authFilter)
	effective.RegisterEvaluatorRestAPI(engine, c.Evaluator, authFilter)
	changelog.RegisterChangeLogsRestAPI(engine, c.DataSource, authFilter)
	return engine
}

// Run serves until SIGINT or SIGTERM, then shuts the server down gracefully
func Run(engine *gin.Engine, addr string) error {
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		logrus.Infof("[QUIT] signal %s received, shutting down in %s", sig, ShutdownTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("[QUIT] http server is shutdown gracefully")
	return nil
}

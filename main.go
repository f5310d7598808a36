package main

import (
	"flag"
	"permflow/client/es"
	"permflow/config"
	"permflow/domain"
	"permflow/domain/approver"
	"permflow/domain/bu"
	"permflow/domain/changelog"
	"permflow/domain/preference"
	"permflow/domain/role"
	"permflow/domain/vgroup"
	"permflow/infra/tracing"
	"permflow/persistence"
	"permflow/server"
	"permflow/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path of the yaml config file")
	flag.Parse()

	c, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}
	if err := config.SetupLogging(c); err != nil {
		logrus.Fatalf("setup logging failed: %v", err)
	}
	gin.SetMode(c.GinMode)
	logrus.Info("service start")

	closer, err := tracing.InitGlobalTracer()
	if err != nil {
		logrus.Fatalf("init tracer failed: %v", err)
	}
	defer closer.Close()

	// create database (no conflict)
	if c.Database.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(c.Database.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database: %v", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: &c.Database, LogSQL: c.DebugMode()}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed: %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	if err := ds.GormDB().AutoMigrate(&role.Role{}, &approver.Approver{},
		&vgroup.VirtualGroup{}, &vgroup.VirtualGroupMember{}, &vgroup.VirtualGroupRole{},
		&bu.BusinessUnit{}, &bu.UserBusinessUnit{}, &bu.UserBusinessUnitRole{}, &bu.BusinessUnitRole{},
		&changelog.MemberChangeLog{}, &preference.UserPreference{}, &domain.PermissionRequest{}).Error; err != nil {
		logrus.Fatalf("database migration failed: %v", err)
	}

	changelog.Handlers = []changelog.Handler{changelog.MetricsHandler}
	if len(c.ElasticsearchAddresses) > 0 {
		client, err := es.CreateClient(c.ElasticsearchAddresses, c.DebugMode())
		if err != nil {
			logrus.Fatalf("create elasticsearch client failed: %v", err)
		}
		es.ActiveESClient = client
		changelog.Handlers = append(changelog.Handlers, changelog.IndexHandler)
	}

	sweeper, err := vgroup.StartExpirySweeper(c.ExpirySchedule, ds)
	if err != nil {
		logrus.Fatalf("start virtual group expiry sweeper failed: %v", err)
	}
	defer sweeper.Stop()

	components := server.NewComponents(ds, c.RoleCacheSize, c.RequestRatePerMinute)
	components.SessionIssuerSecret = c.SessionIssuerSecret
	engine := server.BuildEngine(components, session.SimpleAuthFilter())
	if err := server.Run(engine, c.ListenAddr); err != nil {
		logrus.Errorf("http server failed: %v", err)
	}
	logrus.Info("service exiting")
}

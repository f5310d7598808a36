package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

type DatabaseConfig struct {
	DriverType string `yaml:"driverType"`
	DriverArgs string `yaml:"driverArgs"`
}

// ParseDatabaseConfigFromEnv DB_DRIVER=mysql DB_ARGS=root:root@(127.0.0.1:3306)/permflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driverType == "" {
		driverType = DriverMysql
	}
	driverArgs := os.ExpandEnv(os.Getenv("DB_ARGS"))
	if driverArgs == "" {
		if driverType == DriverSqlite {
			driverArgs = "file:permflow.db?cache=shared"
		} else {
			driverArgs = "root:root@(127.0.0.1:3306)/permflow?charset=utf8mb4&parseTime=True&loc=Local"
		}
	}
	c := &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}
	return c, c.Validate()
}

func (c *DatabaseConfig) Validate() error {
	if c.DriverType != DriverMysql && c.DriverType != DriverSqlite {
		return ErrUnsupportedDriver
	}
	return nil
}

// PrepareMysqlDatabase create the database named in the dsn if it is absent
func PrepareMysqlDatabase(driverArgs string) error {
	dsn, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := dsn.DBName
	dsn.DBName = ""

	db, err := sql.Open(DriverMysql, dsn.FormatDSN())
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.Warnf("failed to close database preparing connection: %v", err)
		}
	}()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 DEFAULT COLLATE utf8mb4_unicode_ci")
	return err
}

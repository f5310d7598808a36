package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

const ServiceName = "permflow"

// DefaultFieldsHook stamps every log entry with the service name and instance
type DefaultFieldsHook struct {
	ServiceInstance string
}

func NewDefaultFieldsHook() *DefaultFieldsHook {
	instance, err := os.Hostname()
	if err != nil {
		instance = "unknown"
	}
	return &DefaultFieldsHook{ServiceInstance: instance}
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = ServiceName
	e.Data["serviceInstance"] = hook.ServiceInstance
	return nil
}

package tracing

import (
	"io"
	"permflow/common"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

type jaegerLogger struct{}

func (jaegerLogger) Error(msg string) {
	logrus.Error("jaeger: ", msg)
}

func (jaegerLogger) Infof(msg string, args ...interface{}) {
	logrus.Infof("jaeger: "+msg, args...)
}

// InitGlobalTracer installs a jaeger tracer configured by the standard JAEGER_* environment variables.
// Close the returned closer on shutdown to flush buffered spans.
func InitGlobalTracer() (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = common.ServiceName
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaegerLogger{}))
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

var _ jaeger.Logger = jaegerLogger{}

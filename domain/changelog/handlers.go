package changelog

import (
	"context"
	"permflow/infra/metrics"

	"github.com/sirupsen/logrus"
)

/*
return nil if not support.
ctx carries the trace of the operation that committed the change log
*/
type Handler func(ctx context.Context, l *MemberChangeLog) *HandleResult

type HandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var Handlers []Handler

var InvokeHandlersFunc = invokeHandlers

// Dispatch hands committed change logs to the registered handlers
func Dispatch(ctx context.Context, logs []MemberChangeLog) {
	for i := range logs {
		InvokeHandlersFunc(ctx, &logs[i])
	}
}

func invokeHandlers(ctx context.Context, l *MemberChangeLog) []HandleResult {
	results := []HandleResult{}
	for _, handler := range Handlers {
		logrus.Debug("pre handle change log ", l.ID)
		r := handler(ctx, l)
		if r == nil {
			continue
		}

		results = append(results, *r)
		if r.Success {
			logrus.Debug("post handle change log. ", r)
		} else {
			logrus.Error("post handle change log error. ", r)
		}
	}
	return results
}

// MetricsHandler counts committed change logs
func MetricsHandler(_ context.Context, l *MemberChangeLog) *HandleResult {
	metrics.MemberChanged(string(l.ChangeType), string(l.TargetType))
	return nil
}

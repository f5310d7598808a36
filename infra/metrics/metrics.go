package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const PathMetrics = "/metrics"

var Registry = prometheus.NewRegistry()

var (
	PermissionRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permflow",
		Name:      "permission_requests_total",
		Help:      "Permission requests by type and the status they entered.",
	}, []string{"type", "status"})

	MemberChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permflow",
		Name:      "member_changes_total",
		Help:      "Committed membership changes by change type and target type.",
	}, []string{"change_type", "target_type"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PermissionRequests,
		MemberChanges,
	)
}

// RequestEntered counts a permission request of requestType entering status
func RequestEntered(requestType, status string) {
	PermissionRequests.WithLabelValues(requestType, status).Inc()
}

func MemberChanged(changeType, targetType string) {
	MemberChanges.WithLabelValues(changeType, targetType).Inc()
}

func RegisterMetricsAPI(r *gin.Engine) {
	r.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})))
}

package changelog

import (
	"context"
	"permflow/client/es"
)

const IndexMemberChangeLogs = "member_change_logs"

const indexerIdentifier = "change-log-indexer"

// IndexHandler copies committed change logs into elasticsearch, the index request joins the trace of ctx
func IndexHandler(ctx context.Context, l *MemberChangeLog) *HandleResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := es.IndexFunc(ctx, IndexMemberChangeLogs, l.ID, l); err != nil {
		return &HandleResult{Success: false, Message: err.Error(), HandlerIdentifier: indexerIdentifier}
	}
	return &HandleResult{Success: true, Message: "indexed", HandlerIdentifier: indexerIdentifier}
}

package core

import "context"

// Change operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Tables that publish changes.
const (
	TableBatches     = "batches"
	TableEnrollments = "enrollments"
	TableNotices     = "notices"
	TableSubmissions = "submissions"
	TableUsers       = "users"

	// TableRevokedTokens carries signed out token ids between API instances. It is never streamed to clients.
	TableRevokedTokens = "revoked_tokens"
)

// PublicTables are the tables clients may watch.
var PublicTables = []string{TableBatches, TableEnrollments, TableNotices, TableSubmissions, TableUsers}

func IsPublicTable(table string) bool {
	for _, t := range PublicTables {
		if t == table {
			return true
		}
	}
	return false
}

// ChangeEvent notifies subscribers that a row changed; subscribers re-fetch what they display.
type ChangeEvent struct {
	Table    string `json:"table"`
	Op       string `json:"op"`
	RecordID string `json:"record_id"`
}

// ChangeBroker is a realtime table-change feed.
type ChangeBroker interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Subscribe delivers events of the given tables (all tables if none) until unsubscribe is called or ctx is done.
	Subscribe(ctx context.Context, tables ...string) (events <-chan ChangeEvent, unsubscribe func())
}

// PublishChange publishes ev and logs failures; publishing never fails the write that triggered it.
func PublishChange(ctx context.Context, broker ChangeBroker, logger Logger, table, op, id string) {
	if broker == nil {
		return
	}
	ev := ChangeEvent{Table: table, Op: op, RecordID: id}
	if err := broker.Publish(ctx, ev); err != nil {
		logger.Warn("publishing change event", err, map[string]interface{}{"table": table, "op": op, "id": id})
	}
}

package pipeline

import (
	"time"

	"reqcore/pkg/domain"
)

// Timestamps are stored as RFC 3339 strings so rows survive a JSON snapshot
// round trip unchanged.
const timeLayout = time.RFC3339Nano

// stampInsert copies the payload and fills the audit fields every new row
// carries: a fresh id, creation and update metadata for the acting user, the
// soft-delete triple cleared, and the initial version.
func (p *Pipeline) stampInsert(actor domain.Actor, payload domain.Row) domain.Row {
	row := domain.CloneRow(payload)
	now := p.now().UTC().Format(timeLayout)
	row["id"] = p.newID()
	row["created_at"] = now
	row["updated_at"] = now
	row["created_by"] = actor.ID
	row["updated_by"] = actor.ID
	row["is_deleted"] = false
	row["deleted_at"] = nil
	row["deleted_by"] = nil
	row["version"] = int64(1)
	return row
}

// stampUpdate mutates the patch in place with update metadata and the next
// version. Creation fields are never touched.
func (p *Pipeline) stampUpdate(actor domain.Actor, patch domain.Row, nextVersion int64) {
	patch["updated_at"] = p.now().UTC().Format(timeLayout)
	patch["updated_by"] = actor.ID
	patch["version"] = nextVersion
}

// stampDelete builds the soft-delete patch. Soft delete is an update under
// the hood, so it bumps the version like any other write.
func (p *Pipeline) stampDelete(actor domain.Actor, currentVersion int64) domain.Row {
	now := p.now().UTC().Format(timeLayout)
	return domain.Row{
		"is_deleted": true,
		"deleted_at": now,
		"deleted_by": actor.ID,
		"updated_at": now,
		"updated_by": actor.ID,
		"version":    currentVersion + 1,
	}
}

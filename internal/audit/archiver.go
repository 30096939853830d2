package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reqcore/internal/archive"
)

// Archiver exports trail batches to an archive store. Each Flush writes the
// changes recorded since the previous flush as one JSON array under a
// timestamped key. Flushing is explicit; callers decide cadence.
type Archiver struct {
	trail  *Memory
	store  archive.Store
	log    zerolog.Logger
	now    func() time.Time
	offset int
	batch  int
}

// NewArchiver binds a trail to a store.
func NewArchiver(trail *Memory, store archive.Store, log zerolog.Logger) *Archiver {
	return &Archiver{trail: trail, store: store, log: log, now: time.Now}
}

// Flush exports pending changes. It returns the number of changes written;
// zero with a nil error means there was nothing to export. The trail offset
// only advances after a successful write, so a failed flush retries the same
// batch.
func (a *Archiver) Flush(ctx context.Context) (int, error) {
	pending := a.trail.drainFrom(a.offset)
	if len(pending) == 0 {
		return 0, nil
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return 0, fmt.Errorf("audit: encode batch: %w", err)
	}
	a.batch++
	key := fmt.Sprintf("changes/%s/batch-%06d.json", a.now().UTC().Format("2006/01/02"), a.batch)
	if err := a.store.Put(ctx, key, payload); err != nil {
		a.batch--
		return 0, fmt.Errorf("audit: write batch: %w", err)
	}
	a.offset += len(pending)
	a.log.Info().Str("key", key).Int("changes", len(pending)).Msg("audit batch archived")
	return len(pending), nil
}

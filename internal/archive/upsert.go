package archive

import (
	"github.com/nationalarchives/wa-frontend/internal/model"
)

// Outcome is the decision taken for one validated record.
type Outcome int

const (
	Created Outcome = iota
	Updated
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Writer receives the mutations decided by SaveEntry. store.Tx satisfies it.
type Writer interface {
	Insert(rec model.ArchiveRecord)
	Update(rec model.ArchiveRecord)
}

// SaveEntry decides whether rec is new, changed or unchanged relative to the
// stored rows in existing (keyed by wam_id) and queues the matching write on w.
// A dry run takes the same decision without queueing writes or touching
// existing.
func SaveEntry(w Writer, rec model.ArchiveRecord, existing map[int64]*model.ArchiveRecord, dryRun bool) Outcome {
	cur, ok := existing[rec.WamID]
	if !ok || cur == nil {
		if !dryRun {
			w.Insert(rec)
		}
		return Created
	}

	if cur.RecordHash == rec.RecordHash {
		return Skipped
	}

	if !dryRun {
		cur.CopyContent(rec)
		w.Update(*cur)
	}
	return Updated
}

// SaveBatch runs SaveEntry over every record and tallies the outcomes.
func SaveBatch(w Writer, records []model.ArchiveRecord, existing map[int64]*model.ArchiveRecord, dryRun bool) model.SaveStats {
	var stats model.SaveStats
	for _, rec := range records {
		switch SaveEntry(w, rec, existing, dryRun) {
		case Created:
			stats.Created++
		case Updated:
			stats.Updated++
		case Skipped:
			stats.Skipped++
		}
	}
	return stats
}

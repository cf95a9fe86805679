package purge

import (
	"context"
	"time"

	"github.com/relstore/relstore/bulk"
)

// backup exports the candidate purge set to opts.BackupPath before
// committing the delete (spec §4.H "BackupBeforePurge triggers a bulk
// export to BackupPath first (invoking §4.G)"). It reuses the same
// predicate and age bound Purge applies, with every lifecycle filter opened
// up (IncludeAllVersions/IncludeDeleted/IncludeExpired) so the backup is at
// least as inclusive as what's about to be deleted, regardless of Strategy.
func (e *Engine[T, K]) backup(ctx context.Context, opts Options) error {
	pipeline := bulk.New(e.repo)

	exportOpts := bulk.DefaultExportOptions()
	exportOpts.ExportFolder = opts.BackupPath
	exportOpts.FileNamePrefix = "purge_backup"
	exportOpts.IncludeAllVersions = true
	exportOpts.IncludeDeleted = true
	exportOpts.IncludeExpired = true
	exportOpts.Caller = opts.Caller

	cutoff := opts.CutoffDate
	if cutoff.IsZero() && opts.AgeThreshold > 0 {
		cutoff = time.Now().UTC().Add(-opts.AgeThreshold)
	}
	if !cutoff.IsZero() {
		exportOpts.Mode = bulk.Archive
		exportOpts.ArchiveOlderThan = time.Since(cutoff)
	}

	_, err := pipeline.Export(ctx, opts.Predicate, exportOpts)
	return err
}

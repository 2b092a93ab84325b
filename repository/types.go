package repository

import "github.com/cepro/gridrl/telemetry"

// StoredEpisodeSummary represents an episode summary that is persisted to the SQLite database, and includes a count of upload attempts.
type StoredEpisodeSummary struct {
	telemetry.EpisodeSummary
	UploadAttemptCount uint
}

// StoredUpdateReport represents a trainer update report that is persisted to the SQLite database, and includes a count of upload attempts.
type StoredUpdateReport struct {
	telemetry.UpdateReport
	UploadAttemptCount uint
}

func newStoredEpisodeSummary(summary telemetry.EpisodeSummary) StoredEpisodeSummary {
	return StoredEpisodeSummary{
		EpisodeSummary:     summary,
		UploadAttemptCount: 0,
	}
}

func newStoredUpdateReport(report telemetry.UpdateReport) StoredUpdateReport {
	return StoredUpdateReport{
		UpdateReport:       report,
		UploadAttemptCount: 0,
	}
}

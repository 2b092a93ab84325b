package repository

import (
	"errors"
	"fmt"

	"github.com/cepro/gridrl/telemetry"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository stores training diagnostics to the local file system (sqlite) before they are uploaded to Supabase.
type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&StoredEpisodeSummary{}, &StoredUpdateReport{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

func (r *Repository) AddEpisode(summary telemetry.EpisodeSummary) error {
	result := r.db.Create(newStoredEpisodeSummary(summary))
	return result.Error
}

func (r *Repository) AddUpdate(report telemetry.UpdateReport) error {
	result := r.db.Create(newStoredUpdateReport(report))
	return result.Error
}

// DeleteRecords removes the given stored records, which must be a slice of StoredEpisodeSummary or StoredUpdateReport.
func (r *Repository) DeleteRecords(records interface{}) error {
	result := r.db.Delete(records)
	return result.Error
}

func (r *Repository) GetEpisodes(limit int, fresh bool) ([]StoredEpisodeSummary, error) {
	var episodes []StoredEpisodeSummary

	result := r.pending(limit, fresh).Find(&episodes)
	if result.Error != nil {
		return nil, result.Error
	}
	return episodes, nil
}

func (r *Repository) GetUpdates(limit int, fresh bool) ([]StoredUpdateReport, error) {
	var updates []StoredUpdateReport

	result := r.pending(limit, fresh).Find(&updates)
	if result.Error != nil {
		return nil, result.Error
	}
	return updates, nil
}

// pending returns a query for records that have never been uploaded (`fresh`), or that have failed at least once.
func (r *Repository) pending(limit int, fresh bool) *gorm.DB {
	query := r.db.Limit(limit).Order("upload_attempt_count asc, time desc")
	if fresh {
		query = query.Where("upload_attempt_count = ?", 0)
	} else {
		query = query.Where("upload_attempt_count > ?", 0)
	}
	return query
}

func (r *Repository) IncrementUploadAttemptCount(records interface{}) error {
	result := r.db.Model(records).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

// BestEpisode returns the stored episode of the given run with the highest total reward. The boolean is false if
// the run has no stored episodes.
func (r *Repository) BestEpisode(runID uuid.UUID) (StoredEpisodeSummary, bool, error) {
	var episode StoredEpisodeSummary

	result := r.db.Where("run_id = ?", runID).Order("total_reward desc").First(&episode)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return StoredEpisodeSummary{}, false, nil
	}
	if result.Error != nil {
		return StoredEpisodeSummary{}, false, result.Error
	}
	return episode, true, nil
}

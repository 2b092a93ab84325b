package dataplatform

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/cepro/gridrl/repository"
	"github.com/cepro/gridrl/telemetry"
)

// uploadChunkLimit defines how many records we can upload in one supabase HTTP request
const uploadChunkLimit = 100

// Uploader sends records to a remote table, for example *supabase.Client.
type Uploader interface {
	UploadRecords(table string, records interface{}) error
}

// DataPlatform handles the streaming of training diagnostics to Supabase.
// Put episode summaries and update reports onto the appropriate channels, they will be bufferred on disk in a SQLite
// database before being uploaded to Supabase. Without an uploader they are only kept locally.
type DataPlatform struct {
	Episodes chan telemetry.EpisodeSummary
	Updates  chan telemetry.UpdateReport

	repository     *repository.Repository
	uploader       Uploader
	uploadInterval time.Duration
	logger         *slog.Logger
}

func New(repository *repository.Repository, uploader Uploader, uploadInterval time.Duration) *DataPlatform {
	return &DataPlatform{
		Episodes:       make(chan telemetry.EpisodeSummary, 100), // a buffer to allow SQLite to catch up, the trainer drops records rather than wait
		Updates:        make(chan telemetry.UpdateReport, 25),
		repository:     repository,
		uploader:       uploader,
		uploadInterval: uploadInterval,
		logger:         slog.Default().With("component", "data_platform"),
	}
}

// Run loops until the context is cancelled, storing records as they arrive and periodically uploading them. Records
// still queued on the channels when the context is cancelled are stored before returning.
func (d *DataPlatform) Run(ctx context.Context) {

	uploadTicker := time.NewTicker(d.uploadInterval)
	defer uploadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case episode := <-d.Episodes:
			d.storeEpisode(episode)
		case update := <-d.Updates:
			d.storeUpdate(update)
		case <-uploadTicker.C:
			d.attemptUpload()
		}
	}
}

func (d *DataPlatform) drain() {
	for {
		select {
		case episode := <-d.Episodes:
			d.storeEpisode(episode)
		case update := <-d.Updates:
			d.storeUpdate(update)
		default:
			return
		}
	}
}

func (d *DataPlatform) storeEpisode(episode telemetry.EpisodeSummary) {
	err := d.repository.AddEpisode(episode)
	if err != nil {
		d.logger.Error("Failed to persist episode summary", "error", err)
		return
	}
	d.logger.Debug("Stored episode summary", "episode_id", episode.ID)
}

func (d *DataPlatform) storeUpdate(update telemetry.UpdateReport) {
	err := d.repository.AddUpdate(update)
	if err != nil {
		d.logger.Error("Failed to persist update report", "error", err)
		return
	}
	d.logger.Debug("Stored update report", "iteration", update.Iteration)
}

// attemptUpload attempts to upload the records from the repository into Supabase.
func (d *DataPlatform) attemptUpload() {
	if d.uploader == nil {
		return
	}

	// first attempt to upload any new records that have not been seen before, then any old records that have
	// already failed an upload at least once
	for _, fresh := range []bool{true, false} {
		episodes, err := d.repository.GetEpisodes(uploadChunkLimit, fresh)
		if err != nil {
			d.logger.Error("Failed to query episode summaries", "fresh", fresh, "error", err)
		} else if len(episodes) > 0 {
			err = d.handleRecords(episodes, episodesTable, convertEpisodes(episodes))
			if err != nil {
				d.logger.Error("Failed to handle episode summaries", "fresh", fresh, "error", err)
			}
		}

		updates, err := d.repository.GetUpdates(uploadChunkLimit, fresh)
		if err != nil {
			d.logger.Error("Failed to query update reports", "fresh", fresh, "error", err)
		} else if len(updates) > 0 {
			err = d.handleRecords(updates, updatesTable, convertUpdates(updates))
			if err != nil {
				d.logger.Error("Failed to handle update reports", "fresh", fresh, "error", err)
			}
		}
	}
}

// handleRecords attempts to upload the given records. If successfull, it deletes the records from the database, if
// unsuccessful, it increments the 'upload attempt count' column and leaves the records in the database for another time.
func (d *DataPlatform) handleRecords(stored interface{}, tableName string, converted interface{}) error {

	uploadErr := d.uploader.UploadRecords(tableName, converted)
	if uploadErr != nil {
		uploadErr := fmt.Errorf("upload failed: %w", uploadErr)
		errInc := d.repository.IncrementUploadAttemptCount(stored)
		if errInc != nil {
			return fmt.Errorf("%w: increment upload attempt count: %w", uploadErr, errInc)
		}
		return uploadErr
	}

	deleteErr := d.repository.DeleteRecords(stored)
	if deleteErr != nil {
		return fmt.Errorf("delete uploaded records from %s: %w", tableName, deleteErr)
	}

	d.logger.Info("Uploaded records", "db_table", tableName, "db_records", reflect.ValueOf(stored).Len())

	return nil
}

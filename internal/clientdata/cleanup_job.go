package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes long-expired entries from all client data tables.
// It is scheduled to run daily; rows expired less than CleanupGrace ago are
// kept as a fallback for API outages.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run executes the cleanup job across all tables.
func (j *CleanupJob) Run() error {
	var totalDeleted int64
	for _, table := range AllTables {
		count, err := j.repo.DeleteExpired(table, CleanupGrace)
		if err != nil {
			j.log.Error().Err(err).Str("table", table).Msg("Failed to delete expired client data")
			return err
		}
		if count > 0 {
			j.log.Info().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Client data cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}

package notion

import (
	"context"
	"fmt"
	"time"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/pkg/errors"
)

// DefaultUploadDelay is the pause between consecutive create calls
const DefaultUploadDelay = 350 * time.Millisecond

// PageCreator creates database rows
type PageCreator interface {
	CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error)
}

// UploaderOptions configures an Uploader
type UploaderOptions struct {
	Delay    time.Duration
	Defaults Defaults
	// Pause waits between calls; SleepContext when nil
	Pause    helpers.SleepFunc
	Failures helpers.FailureRecorder
}

// Summary reports the outcome of an upload run
type Summary struct {
	Created int
	Failed  []helpers.Failure
}

// Uploader pushes rows into a database one create call at a time
type Uploader struct {
	creator  PageCreator
	delay    time.Duration
	defaults Defaults
	pause    helpers.SleepFunc
	failures helpers.FailureRecorder
	log      *logger.Logger
}

// NewUploader creates an uploader
func NewUploader(creator PageCreator, opts UploaderOptions) *Uploader {
	pause := opts.Pause
	if pause == nil {
		pause = helpers.SleepContext
	}
	return &Uploader{
		creator:  creator,
		delay:    opts.Delay,
		defaults: opts.Defaults,
		pause:    pause,
		failures: opts.Failures,
		log:      logger.ForUploader(),
	}
}

// Upload creates one page per row, in order, pausing between consecutive calls.
// Rows go to databaseID unless they name their own database. A failed row
// is recorded and skipped. An authentication failure or a cancelled context
// stops the run and is returned alongside the partial summary.
func (u *Uploader) Upload(ctx context.Context, databaseID string, rows []Row) (Summary, error) {
	var summary Summary
	log := u.log.WithField("database", databaseID)

	calls := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := row.Record.Name
		if name == "" {
			u.fail(&summary, name, errors.NewValidation("Upload", "record has no name"))
			continue
		}

		target := databaseID
		if row.DatabaseID != "" {
			target = row.DatabaseID
		}
		if target == "" {
			u.fail(&summary, name, errors.NewValidation("Upload", fmt.Sprintf("no database configured for district %q", row.District)))
			continue
		}

		if calls > 0 {
			if err := u.pause(ctx, u.delay); err != nil {
				return summary, err
			}
		}
		calls++

		_, err := u.creator.CreatePage(ctx, target, RowProperties(row, u.defaults))
		if err != nil {
			if errors.IsFatal(err) {
				log.Error().Err(err).Str("record", name).Msg("Upload aborted")
				u.fail(&summary, name, err)
				return summary, fmt.Errorf("upload aborted after %d rows: %w", summary.Created, err)
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			u.fail(&summary, name, err)
			continue
		}

		summary.Created++
		log.Debug().Str("record", name).Str("district", row.District).Str("target", target).Msg("Page created")
	}

	log.Info().Int("created", summary.Created).Int("failed", len(summary.Failed)).Msg("Upload finished")
	return summary, nil
}

func (u *Uploader) fail(summary *Summary, name string, err error) {
	summary.Failed = append(summary.Failed, helpers.Failure{Identifier: name, Err: err, Time: time.Now()})
	u.log.Warn().Err(err).Str("record", name).Msg("Row upload failed")
	if u.failures != nil {
		u.failures.LogError(name, err)
	}
}

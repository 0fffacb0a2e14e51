package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"sjsage522/communitysync/internal/crawler"
	"sjsage522/communitysync/internal/district"
	"sjsage522/communitysync/internal/notion"
	"sjsage522/communitysync/internal/sink"
	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/services/publisher"
)

// RecordSource produces the scraped records of one run
type RecordSource interface {
	Walk(ctx context.Context) ([]crawler.CommunityRecord, error)
}

// RowUploader pushes rows into a database
type RowUploader interface {
	Upload(ctx context.Context, databaseID string, rows []notion.Row) (notion.Summary, error)
}

// DatabaseReader reads every row of a database
type DatabaseReader interface {
	QueryDatabase(ctx context.Context, databaseID string) ([]notion.Page, error)
}

// DatabaseResolver returns the database a district uploads into, or "" when none is configured
type DatabaseResolver func(district string) string

// Options wires the components a Runner drives. Only the ones a command uses need be set.
type Options struct {
	Source      RecordSource
	Classifier  *district.Classifier
	Writer      *sink.CSVWriter
	Publisher   publisher.Publisher
	Uploader    RowUploader
	Reader      DatabaseReader
	Resolve     DatabaseResolver
	Environment string
}

// Runner drives scrape, split, upload and export runs
type Runner struct {
	source      RecordSource
	classifier  *district.Classifier
	writer      *sink.CSVWriter
	publisher   publisher.Publisher
	uploader    RowUploader
	reader      DatabaseReader
	resolve     DatabaseResolver
	environment string
	log         *logger.Logger
}

// NewRunner creates a new runner
func NewRunner(opts Options) *Runner {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = district.NewClassifier(nil, district.ByAddress)
	}
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &Runner{
		source:      opts.Source,
		classifier:  classifier,
		writer:      opts.Writer,
		publisher:   opts.Publisher,
		uploader:    opts.Uploader,
		reader:      opts.Reader,
		resolve:     resolve,
		environment: opts.Environment,
		log:         logger.ForPipeline(),
	}
}

// ScrapeResult describes the files a scrape run produced
type ScrapeResult struct {
	OutputDir     string
	Records       int
	CombinedPath  string
	DistrictPaths []string
	Districts     []string
	Counts        map[string]int
	Unclassified  int
	Published     int
}

// PublishedRecord is the message published for each classified record
type PublishedRecord struct {
	crawler.CommunityRecord
	District string `json:"district"`
}

// Scrape walks the source site, writes the combined and per-district CSV files
// and, when a publisher is configured, publishes every classified record to its
// district's stream.
func (r *Runner) Scrape(ctx context.Context) (ScrapeResult, error) {
	var result ScrapeResult
	if r.source == nil || r.writer == nil {
		return result, fmt.Errorf("scrape needs a record source and a CSV writer")
	}
	result.OutputDir = r.writer.Dir()

	records, err := r.source.Walk(ctx)
	if err != nil {
		return result, fmt.Errorf("walk failed: %w", err)
	}
	result.Records = len(records)

	result.CombinedPath, err = r.writer.WriteCombined(records)
	if err != nil {
		return result, err
	}

	groups := r.classifier.Group(records)
	result.Unclassified = len(groups.Unclassified)
	result.Districts = r.classifier.Districts(groups)
	result.Counts = make(map[string]int, len(result.Districts))
	for _, label := range result.Districts {
		result.Counts[label] = len(groups.ByDistrict[label])
	}
	if result.Unclassified > 0 {
		r.log.Warn().Int("records", result.Unclassified).Msg("Records matched no district and were left out of the district files")
	}

	result.DistrictPaths, err = r.writer.WriteDistricts(r.classifier.Labels(), groups.ByDistrict)
	if err != nil {
		return result, err
	}

	if r.publisher != nil {
		result.Published = r.publish(result.Districts, groups)
	}

	r.log.Info().
		Str("dir", result.OutputDir).
		Int("records", result.Records).
		Int("districts", len(result.Districts)).
		Int("unclassified", result.Unclassified).
		Msg("Scrape finished")
	return result, nil
}

// publish sends every classified record to its district stream and trims the streams afterwards
func (r *Runner) publish(districts []string, groups district.Groups) int {
	published := 0
	for _, label := range districts {
		records := groups.ByDistrict[label]
		for i, record := range records {
			data, err := json.Marshal(PublishedRecord{CommunityRecord: record, District: label})
			if err != nil {
				logger.LogError(label, err, "failed to encode record %q", record.Name)
				continue
			}

			if err := r.publisher.Publish(label, data); err != nil {
				logger.LogError(label, err, "failed to publish record %q", record.Name)
				continue
			}
			published++

			if i == 0 {
				r.logSample(label, data)
			}
		}
	}

	if err := r.publisher.TrimStreams(); err != nil {
		logger.LogError("StreamTrimming", err, "failed to trim streams")
	}
	return published
}

// logSample logs the first record of each district outside production
func (r *Runner) logSample(label string, data []byte) {
	if r.environment == "production" {
		return
	}
	r.log.Debug().Str("district", label).RawJSON("record", data).Msg("Published record")
}

// Split regroups an existing combined CSV into per-district files
func (r *Runner) Split(path string) ([]string, int, error) {
	if r.writer == nil {
		return nil, 0, fmt.Errorf("split needs a CSV writer")
	}
	return sink.SplitFile(path, r.classifier, r.writer)
}

// UploadTarget selects where an uploaded file goes.
// DatabaseID wins over District; with neither, every row is classified and
// routed to its own district's database.
type UploadTarget struct {
	DatabaseID string
	District   string
}

// Upload reads a CSV file and creates one database row per record.
// A file named after a district, as scrape and split write them, keeps that
// district for every row instead of classifying the rows again.
func (r *Runner) Upload(ctx context.Context, path string, target UploadTarget) (notion.Summary, error) {
	if r.uploader == nil {
		return notion.Summary{}, fmt.Errorf("upload needs an uploader")
	}
	if target.District == "" {
		target.District = r.fileDistrict(path)
	}

	records, err := sink.ReadCSV(path)
	if err != nil {
		return notion.Summary{}, err
	}

	rows, err := r.Rows(records, target)
	if err != nil {
		return notion.Summary{}, err
	}

	r.log.Info().Str("file", path).Str("district", target.District).Int("rows", len(rows)).Msg("Uploading rows")
	return r.uploader.Upload(ctx, target.DatabaseID, rows)
}

// Rows attaches a district and a destination database to each record.
// Without an explicit district each record is classified. Records no district
// matches are dropped unless an explicit database gives them somewhere to go.
func (r *Runner) Rows(records []crawler.CommunityRecord, target UploadTarget) ([]notion.Row, error) {
	if target.District != "" && !r.isKnownDistrict(target.District) {
		return nil, fmt.Errorf("unknown district %q", target.District)
	}

	rows := make([]notion.Row, 0, len(records))
	dropped := 0
	for _, record := range records {
		label := target.District
		if label == "" {
			label = r.classifier.ClassifyRecord(record)
		}
		if label == district.Unclassified {
			if target.DatabaseID == "" {
				dropped++
				continue
			}
			label = ""
		}

		row := notion.Row{Record: record, District: label}
		if target.DatabaseID == "" {
			row.DatabaseID = r.resolve(label)
		}
		rows = append(rows, row)
	}

	if dropped > 0 {
		r.log.Warn().Int("records", dropped).Msg("Records matched no district and will not be uploaded")
	}
	return rows, nil
}

// fileDistrict returns the district a file is named after, or "" for any other file
func (r *Runner) fileDistrict(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if r.isKnownDistrict(name) {
		return name
	}
	return ""
}

func (r *Runner) isKnownDistrict(label string) bool {
	for _, known := range r.classifier.Labels() {
		if known == label {
			return true
		}
	}
	return false
}

// Export reads a database back into flat rows
func (r *Runner) Export(ctx context.Context, databaseID string) ([]map[string]string, error) {
	if r.reader == nil {
		return nil, fmt.Errorf("export needs a database reader")
	}

	pages, err := r.reader.QueryDatabase(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(pages))
	for _, page := range pages {
		rows = append(rows, notion.Flatten(page))
	}
	r.log.Info().Str("database", databaseID).Int("rows", len(rows)).Msg("Export finished")
	return rows, nil
}

package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sjsage522/communitysync/internal/crawler"
	"sjsage522/communitysync/internal/district"
	"sjsage522/communitysync/logger"
)

// CombinedFileName is the name of the file holding every scraped record
const CombinedFileName = "community_associations.csv"

// Header is the CSV header, in column order
var Header = []string{"name", "population", "address", "email", "contact_person", "title", "phone"}

// headerAliases maps the localized column names of upload-shaped files onto Header
var headerAliases = map[string]string{
	"社區名稱":  "name",
	"社團名稱":  "name",
	"社區人口數": "population",
	"聯絡地址":  "address",
	"電子信箱":  "email",
	"對接窗口":  "contact_person",
	"聯絡窗口":  "contact_person",
	"職稱":    "title",
	"電話":    "phone",
}

const utf8BOM = "\ufeff"

// CSVWriter writes community records to CSV files
type CSVWriter struct {
	dir string
	log *logger.Logger
}

// NewCSVWriter creates a writer placing files under dir
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir, log: logger.ForSink().WithField("dir", dir)}
}

// Dir returns the output directory
func (w *CSVWriter) Dir() string {
	return w.dir
}

// DistrictPath returns the file a district's records are written to
func (w *CSVWriter) DistrictPath(label string) string {
	return filepath.Join(w.dir, label+".csv")
}

// WriteDistricts writes one file per non-empty district in order and returns the paths written.
// Districts without records produce no file.
func (w *CSVWriter) WriteDistricts(order []string, groups map[string][]crawler.CommunityRecord) ([]string, error) {
	var paths []string
	for _, label := range order {
		records := groups[label]
		if len(records) == 0 {
			continue
		}
		path := w.DistrictPath(label)
		if err := WriteCSV(path, records); err != nil {
			return paths, err
		}
		w.log.Info().Str("district", label).Int("rows", len(records)).Str("path", path).Msg("District CSV written")
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteCombined writes every record to the combined file and returns its path
func (w *CSVWriter) WriteCombined(records []crawler.CommunityRecord) (string, error) {
	path := filepath.Join(w.dir, CombinedFileName)
	if err := WriteCSV(path, records); err != nil {
		return "", err
	}
	w.log.Info().Int("rows", len(records)).Str("path", path).Msg("Combined CSV written")
	return path, nil
}

// WriteCSV writes records with the standard header to path, creating its directory
func WriteCSV(path string, records []crawler.CommunityRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	if err := Write(file, records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Write encodes records as CSV with the standard header
func Write(out io.Writer, records []crawler.CommunityRecord) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Name, r.Population, r.Address, r.Email, r.ContactPerson, r.Title, r.Phone}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %q: %w", r.Name, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV reads records from a file written by WriteCSV or by any tool using the same header
func ReadCSV(path string) ([]crawler.CommunityRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	records, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// Read decodes CSV rows. Columns are located by header name, English or the
// localized upload column names, so extra columns (such as a district column)
// are ignored and absent ones read as Missing.
func Read(in io.Reader) ([]crawler.CommunityRecord, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, utf8BOM)))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("CSV header has no name column: %v", header)
	}

	column := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return crawler.Missing
		}
		return row[i]
	}

	var records []crawler.CommunityRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to read CSV row %d: %w", len(records)+2, err)
		}
		records = append(records, crawler.CommunityRecord{
			Name:          column(row, "name"),
			Population:    column(row, "population"),
			Address:       column(row, "address"),
			Email:         column(row, "email"),
			ContactPerson: column(row, "contact_person"),
			Title:         column(row, "title"),
			Phone:         column(row, "phone"),
		})
	}
	return records, nil
}

// SplitFile reads a combined CSV, groups its rows with c and writes one file per district.
// It returns the written paths and the number of rows no district matched.
func SplitFile(path string, c *district.Classifier, w *CSVWriter) ([]string, int, error) {
	records, err := ReadCSV(path)
	if err != nil {
		return nil, 0, err
	}
	groups := c.Group(records)
	if len(groups.Unclassified) > 0 {
		w.log.Warn().Int("rows", len(groups.Unclassified)).Msg("Rows matched no district and were dropped")
	}
	paths, err := w.WriteDistricts(c.Labels(), groups.ByDistrict)
	return paths, len(groups.Unclassified), err
}

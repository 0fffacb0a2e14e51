// Package district assigns community records to Taichung administrative districts.
package district

import (
	"fmt"
	"strings"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/internal/crawler"
)

// Unclassified is returned when no district label matches
const Unclassified = "unclassified"

// marker is the character ending every district name
const marker = "區"

// Labels are the 29 Taichung districts in their canonical order
var Labels = []string{
	"中區", "東區", "西區", "南區", "北區", "西屯區", "南屯區", "北屯區", "豐原區", "大里區",
	"太平區", "東勢區", "大甲區", "清水區", "沙鹿區", "梧棲區", "后里區", "神岡區", "潭子區", "大雅區",
	"新社區", "石岡區", "外埔區", "大安區", "烏日區", "大肚區", "龍井區", "霧峰區", "和平區",
}

// Strategy selects which record field is classified
type Strategy string

const (
	// ByAddress matches labels against the record's address
	ByAddress Strategy = "address"
	// ByName reads the characters before the district marker in the record's name
	ByName Strategy = "name"
)

// ParseStrategy converts a flag value into a Strategy
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case ByAddress, "":
		return ByAddress, nil
	case ByName:
		return ByName, nil
	default:
		return "", fmt.Errorf("unknown district strategy %q (want %q or %q)", value, ByAddress, ByName)
	}
}

// Classifier assigns records to one of an ordered list of labels
type Classifier struct {
	labels   []string
	known    map[string]bool
	strategy Strategy
}

// NewClassifier creates a classifier over labels. Nil labels use the Taichung list.
func NewClassifier(labels []string, strategy Strategy) *Classifier {
	if labels == nil {
		labels = Labels
	}
	known := make(map[string]bool, len(labels))
	for _, label := range labels {
		known[label] = true
	}
	return &Classifier{labels: labels, known: known, strategy: strategy}
}

// Labels returns the classifier's labels in order
func (c *Classifier) Labels() []string {
	return c.labels
}

// Classify returns the longest label contained in text. Labels of equal length
// keep list order. Unclassified is returned when none matches.
func (c *Classifier) Classify(text string) string {
	best := Unclassified
	bestLen := 0
	for _, label := range c.labels {
		if !strings.Contains(text, label) {
			continue
		}
		if n := len([]rune(label)); n > bestLen {
			best, bestLen = label, n
		}
	}
	return best
}

// FromName locates the first district marker in name and tries the two characters
// before it, then the one character before it, against the known labels.
func (c *Classifier) FromName(name string) string {
	if !strings.Contains(name, marker) {
		return Unclassified
	}
	prefix, err := helpers.GetSplitPart(name, marker, 0)
	if err != nil {
		return Unclassified
	}
	for _, n := range []int{2, 1} {
		if len([]rune(prefix)) < n {
			continue
		}
		candidate := helpers.LastRunes(prefix, n) + marker
		if c.known[candidate] {
			return candidate
		}
	}
	return Unclassified
}

// ClassifyRecord applies the classifier's strategy to a record
func (c *Classifier) ClassifyRecord(record crawler.CommunityRecord) string {
	if c.strategy == ByName {
		return c.FromName(record.Name)
	}
	return c.Classify(record.Address)
}

// Groups holds classified records by district, each in input order
type Groups struct {
	ByDistrict   map[string][]crawler.CommunityRecord
	Unclassified []crawler.CommunityRecord
}

// Group partitions records by district
func (c *Classifier) Group(records []crawler.CommunityRecord) Groups {
	groups := Groups{ByDistrict: make(map[string][]crawler.CommunityRecord)}
	for _, record := range records {
		label := c.ClassifyRecord(record)
		if label == Unclassified {
			groups.Unclassified = append(groups.Unclassified, record)
			continue
		}
		groups.ByDistrict[label] = append(groups.ByDistrict[label], record)
	}
	return groups
}

// Districts returns the non-empty districts of g in label order
func (c *Classifier) Districts(g Groups) []string {
	var out []string
	for _, label := range c.labels {
		if len(g.ByDistrict[label]) > 0 {
			out = append(out, label)
		}
	}
	return out
}

package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LabelTable maps label text to the text of the value cell that follows it.
// Labels keep document order so substring lookups return the first match.
type LabelTable struct {
	order  []string
	values map[string]string
}

// BuildLabelTable walks every label cell in sel once. The value of a label is the
// first following sibling matching valueSelector; repeated labels keep their first value.
func BuildLabelTable(sel *goquery.Selection, labelSelector, valueSelector string) LabelTable {
	table := LabelTable{values: make(map[string]string)}
	sel.Find(labelSelector).Each(func(_ int, label *goquery.Selection) {
		key := strings.TrimSpace(label.Text())
		if _, seen := table.values[key]; seen {
			return
		}
		value := Missing
		if next := label.NextAllFiltered(valueSelector).First(); next.Length() > 0 {
			value = strings.TrimSpace(next.Text())
		}
		table.order = append(table.order, key)
		table.values[key] = value
	})
	return table
}

// Len returns the number of labels in the table
func (t LabelTable) Len() int {
	return len(t.order)
}

// Get returns the value for an exact label, or Missing
func (t LabelTable) Get(label string) string {
	if label == "" {
		return Missing
	}
	if value, ok := t.values[label]; ok {
		return value
	}
	return Missing
}

// GetContaining returns the value of the first label containing substr, or Missing
func (t LabelTable) GetContaining(substr string) string {
	if substr == "" {
		return Missing
	}
	for _, label := range t.order {
		if strings.Contains(label, substr) {
			return t.values[label]
		}
	}
	return Missing
}

// Extractor pulls a CommunityRecord out of a detail page
type Extractor struct {
	Selectors Selectors
	Labels    Labels
}

// NewExtractor creates a new extractor
func NewExtractor(selectors Selectors, labels Labels) *Extractor {
	return &Extractor{Selectors: selectors, Labels: labels}
}

// Extract returns the record on a detail page. Any field whose label is absent is Missing;
// when the contact block is absent the contact person, title and phone are all Missing.
func (e *Extractor) Extract(doc *goquery.Document) CommunityRecord {
	fields := BuildLabelTable(doc.Selection, e.Selectors.LabelCell, e.Selectors.ValueCell)

	record := CommunityRecord{
		Name:       fields.Get(e.Labels.Name),
		Population: fields.Get(e.Labels.Population),
		Address:    fields.Get(e.Labels.Address),
		Email:      fields.Get(e.Labels.Email),
	}

	block := doc.Find(e.Selectors.ContactBlock).First()
	if block.Length() == 0 {
		return record
	}

	contact := BuildLabelTable(block, e.Selectors.ContactLabel, e.Selectors.ValueCell)
	record.ContactPerson = contact.Get(e.Labels.ContactPerson)
	record.Title = contact.GetContaining(e.Labels.Title)
	record.Phone = contact.GetContaining(e.Labels.Phone)
	return record
}

package notion

import (
	"strconv"
	"strings"

	"sjsage522/communitysync/internal/crawler"
	"sjsage522/communitysync/internal/sink"
)

// Database property names
const (
	PropName            = "社區名稱"
	PropPopulation      = "社區人口數"
	PropAddress         = "聯絡地址"
	PropEmail           = "Email"
	PropContactPerson   = "對接窗口"
	PropTitle           = "職稱"
	PropPhone           = "電話"
	// PropDistrict is the conventional name for the optional district select
	PropDistrict        = "行政區"
	PropContactProgress = "聯絡進度"
	PropWillingness     = "意願程度"
)

// Default select values for the tracking columns
const (
	DefaultContactProgress = "未聯絡"
	DefaultWillingness     = "未知"
)

// Defaults holds the select values every uploaded row starts with.
// DistrictProperty, when set, names a select column that receives the row's district.
type Defaults struct {
	ContactProgress  string
	Willingness      string
	DistrictProperty string
}

func (d Defaults) withFallbacks() Defaults {
	if d.ContactProgress == "" {
		d.ContactProgress = DefaultContactProgress
	}
	if d.Willingness == "" {
		d.Willingness = DefaultWillingness
	}
	return d
}

// Row is a record queued for upload together with its district.
// DatabaseID overrides the database passed to Uploader.Upload.
type Row struct {
	Record     crawler.CommunityRecord
	District   string
	DatabaseID string
}

// RowProperties maps a record onto the database's properties.
// Missing email and phone become null. The district select is only added when
// defaults name a district property and the row has a district.
func RowProperties(row Row, defaults Defaults) Properties {
	defaults = defaults.withFallbacks()
	r := row.Record

	props := Properties{
		PropName:            TitleProperty(r.Name, r.URL),
		PropPopulation:      NumberProperty(sink.NormalizePopulation(r.Population)),
		PropAddress:         RichTextProperty(r.Address),
		PropEmail:           EmailProperty(r.Email),
		PropContactPerson:   RichTextProperty(r.ContactPerson),
		PropTitle:           RichTextProperty(r.Title),
		PropPhone:           PhoneProperty(r.Phone),
		PropContactProgress: SelectProperty(defaults.ContactProgress),
		PropWillingness:     SelectProperty(defaults.Willingness),
	}
	if defaults.DistrictProperty != "" && row.District != "" {
		props[defaults.DistrictProperty] = SelectProperty(row.District)
	}
	return props
}

func textSegment(content, link string) map[string]any {
	text := map[string]any{"content": content}
	if link != "" {
		text["link"] = map[string]any{"url": link}
	}
	return map[string]any{"type": "text", "text": text}
}

// TitleProperty builds a title value, linked when link is not empty
func TitleProperty(text, link string) map[string]any {
	return map[string]any{"title": []any{textSegment(text, link)}}
}

// RichTextProperty builds a rich_text value; empty text yields no segments
func RichTextProperty(text string) map[string]any {
	segments := []any{}
	if text != crawler.Missing {
		segments = append(segments, textSegment(text, ""))
	}
	return map[string]any{"rich_text": segments}
}

// NumberProperty builds a number value
func NumberProperty(n int) map[string]any {
	return map[string]any{"number": n}
}

// EmailProperty builds an email value, null when missing
func EmailProperty(email string) map[string]any {
	return map[string]any{"email": nullable(email)}
}

// PhoneProperty builds a phone_number value, null when missing
func PhoneProperty(phone string) map[string]any {
	return map[string]any{"phone_number": nullable(phone)}
}

// SelectProperty builds a select value by option name
func SelectProperty(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

func nullable(s string) any {
	if s == crawler.Missing {
		return nil
	}
	return s
}

// Flatten converts a page into plain column values for export.
// Titles also produce a "<name>_link" column; unsupported property types are skipped.
func Flatten(page Page) map[string]string {
	row := make(map[string]string, len(page.Properties))
	for name, prop := range page.Properties {
		switch prop.Type {
		case "title":
			row[name] = plainText(prop.Title)
			row[name+"_link"] = firstLink(prop.Title)
		case "rich_text":
			row[name] = plainText(prop.RichText)
		case "email":
			row[name] = deref(prop.Email)
		case "phone_number":
			row[name] = deref(prop.PhoneNumber)
		case "url":
			row[name] = deref(prop.URL)
		case "select":
			if prop.Select != nil {
				row[name] = prop.Select.Name
			} else {
				row[name] = ""
			}
		case "number":
			if prop.Number != nil {
				row[name] = strconv.FormatFloat(*prop.Number, 'f', -1, 64)
			} else {
				row[name] = ""
			}
		}
	}
	return row
}

func plainText(segments []RichText) string {
	var b strings.Builder
	for _, s := range segments {
		switch {
		case s.PlainText != "":
			b.WriteString(s.PlainText)
		case s.Text != nil:
			b.WriteString(s.Text.Content)
		}
	}
	return b.String()
}

func firstLink(segments []RichText) string {
	for _, s := range segments {
		if s.Text != nil && s.Text.Link != nil {
			return s.Text.Link.URL
		}
		if s.Href != nil {
			return *s.Href
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package crawler

import (
	"sjsage522/communitysync/config"
)

// TaichungSelectors match the Taichung community directory markup
var TaichungSelectors = Selectors{
	ListingTable: "table",
	ListingRow:   "tr",
	ListingLink:  "a[href]",
	LabelCell:    "dd.tabulation_tt",
	ValueCell:    "dt",
	ContactBlock: "ul#comm2",
	ContactLabel: "dd",
}

// TaichungLabels are the label texts of a Taichung detail page
var TaichungLabels = Labels{
	Name:          "社團名稱",
	Population:    "社區人口數",
	Address:       "聯絡地址",
	Email:         "電子信箱",
	ContactPerson: "聯絡窗口",
	Title:         "職",
	Phone:         "電",
}

// TaichungConfig builds the crawler configuration for the Taichung directory
func TaichungConfig(cfg *config.Config) CrawlerConfig {
	return CrawlerConfig{
		ListingURLTemplate: cfg.ListingURLTemplate,
		SitePrefix:         cfg.SitePrefix,
		MaxPages:           cfg.MaxPages,
		Provider:           "Taichung",
		Selectors:          TaichungSelectors,
		Labels:             TaichungLabels,
	}
}

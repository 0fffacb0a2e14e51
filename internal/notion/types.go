package notion

// Properties is the property payload of a page create request
type Properties map[string]any

// Link is the target of a linked text segment
type Link struct {
	URL string `json:"url"`
}

// TextContent is the text part of a rich text segment
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link"`
}

// RichText is one segment of a title or rich_text property
type RichText struct {
	Type      string       `json:"type,omitempty"`
	PlainText string       `json:"plain_text"`
	Text      *TextContent `json:"text,omitempty"`
	Href      *string      `json:"href,omitempty"`
}

// SelectOption is the value of a select property
type SelectOption struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// PropertyValue is a property as returned by the API
type PropertyValue struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Title       []RichText    `json:"title,omitempty"`
	RichText    []RichText    `json:"rich_text,omitempty"`
	Number      *float64      `json:"number,omitempty"`
	Email       *string       `json:"email,omitempty"`
	PhoneNumber *string       `json:"phone_number,omitempty"`
	Select      *SelectOption `json:"select,omitempty"`
	URL         *string       `json:"url,omitempty"`
}

// Page is a database row
type Page struct {
	Object     string                   `json:"object"`
	ID         string                   `json:"id"`
	URL        string                   `json:"url"`
	Properties map[string]PropertyValue `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     parent     `json:"parent"`
	Properties Properties `json:"properties"`
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// apiError is the error body the API returns with non-2xx responses
type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

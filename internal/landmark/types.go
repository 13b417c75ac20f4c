package landmark

import "time"

// Record is the canonical landmark metadata snapshot. Optional fields are
// pointers: nil means the upstream record carried the field under none of
// its known aliases, which is distinct from an empty value.
type Record struct {
	ID              string     `json:"id"`
	Name            *string    `json:"name,omitempty"`
	Borough         *string    `json:"borough,omitempty"`
	Neighborhood    *string    `json:"neighborhood,omitempty"`
	Style           *string    `json:"style,omitempty"`
	DesignationDate *time.Time `json:"designation_date,omitempty"`
	PhotoURL        *string    `json:"photo_url,omitempty"`
}

// Photo is one entry from the landmark photo archive.
type Photo struct {
	URL        string `json:"url"`
	Caption    string `json:"caption,omitempty"`
	Year       int    `json:"year,omitempty"`
	Source     string `json:"source,omitempty"`
	Historical bool   `json:"historical"`
}

// Filters narrows a landmark search.
type Filters struct {
	Text         string
	Borough      string
	Neighborhood string
	Style        string
	Page         int
	PageSize     int
}

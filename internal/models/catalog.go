package models

import "fmt"

// CatalogEntry is a single item in the external catalog.
type CatalogEntry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      *string `json:"author,omitempty"`
	Narrator    string  `json:"narrator,omitempty"`
	Duration    float64 `json:"duration,omitempty"` // seconds
	LibraryID   string  `json:"library_id"`
	LibraryName string  `json:"library_name"`
}

// Library is a catalog library.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

// DurationLabel renders the duration as "Xh Ym", or "Ym" under an hour. Unknown durations render "".
func (e CatalogEntry) DurationLabel() string {
	if e.Duration <= 0 {
		return ""
	}
	total := int(e.Duration)
	h, m := total/3600, (total%3600)/60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

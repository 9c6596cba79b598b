package catalog

import (
	"time"

	"github.com/ieltslisten/learner/internal/client"
)

const (
	AssetAudio    = "audio"
	AssetPDF      = "pdf"
	AssetSubtitle = "subtitle"
)

type Asset struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	Bytes         int64  `json:"bytes"`
	SizeFormatted string `json:"size_formatted"`
	URL           string `json:"url"`
}

type Unit struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Order             int       `json:"order"`
	Transcript        string    `json:"transcript,omitempty"`
	IsFree            bool      `json:"is_free"`
	DurationSec       int       `json:"duration_sec"`
	DurationFormatted string    `json:"duration_formatted"`
	HasQuiz           bool      `json:"has_quiz"`
	Assets            []Asset   `json:"assets,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// Asset returns the first asset of the given type.
func (u *Unit) Asset(typ string) (Asset, bool) {
	for _, a := range u.Assets {
		if a.Type == typ {
			return a, true
		}
	}
	return Asset{}, false
}

type Book struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Slug           string        `json:"slug"`
	Description    string        `json:"description"`
	Cover          string        `json:"cover,omitempty"`
	Price          client.Number `json:"price"` // VND
	IsPublished    bool          `json:"is_published"`
	UnitCount      int           `json:"unit_count"`
	FreeUnitsCount int           `json:"free_units_count"`
	IsOwned        bool          `json:"is_owned"`
	Units          []Unit        `json:"units,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// BookFilter maps onto the list endpoint's query parameters.
type BookFilter struct {
	Search   string `json:"search,omitempty"`
	Ordering string `json:"ordering,omitempty"` // e.g. "price", "-created_at"
	Page     int    `json:"page,omitempty"`
}

type SignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

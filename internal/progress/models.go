package progress

import (
	"time"

	"github.com/ieltslisten/learner/internal/client"
)

type UserProgress struct {
	ID             int64         `json:"id"`
	Book           int64         `json:"book"`
	BookTitle      string        `json:"book_title"`
	BookSlug       string        `json:"book_slug"`
	CompletedUnits int           `json:"completed_units"`
	LastUnit       *int64        `json:"last_unit"`
	LastUnitTitle  string        `json:"last_unit_title,omitempty"`
	LastScorePct   client.Number `json:"last_score_pct"`
	TotalListenSec int           `json:"total_listen_sec"`
	CompletionPct  client.Number `json:"completion_pct"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type ListeningSession struct {
	ID          int64     `json:"id"`
	Unit        int64     `json:"unit"`
	UnitTitle   string    `json:"unit_title"`
	DurationSec int       `json:"duration_sec"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

type Analytics struct {
	TotalListenTime int                `json:"total_listen_time"`
	AvgScore        client.Number      `json:"avg_score"`
	BooksStarted    int                `json:"books_started"`
	RecentSessions  []ListeningSession `json:"recent_sessions"`
	BookProgress    []UserProgress     `json:"book_progress"`
}

package model

import (
	"encoding/json"
	"time"
)

// DateLayout is how release dates travel in JSON and in queue payloads.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time-of-day component.
type Date struct{ time.Time }

// NewDate truncates t to midnight UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Movie mirrors a row of the `movies` table. Score is only populated by
// relevance search.
type Movie struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PosterURL   string    `json:"posterUrl"`
	Rating      float64   `json:"rating"`
	ReleaseDate Date      `json:"releaseDate"`
	Duration    int       `json:"duration"` // minutes
	Genre       []string  `json:"genre"`
	CreatedBy   *uint64   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Score       float64   `json:"score,omitempty"`
}

// MoviePage is one slice of the cursor-paginated listing. NextCursor is
// nil on the last page.
type MoviePage struct {
	Movies     []Movie `json:"movies"`
	NextCursor *uint64 `json:"nextCursor"`
	HasMore    bool    `json:"hasNextPage"`
}

// MoviePatch carries a partial update; nil fields are left unchanged.
type MoviePatch struct {
	Title       *string
	Description *string
	PosterURL   *string
	Rating      *float64
	ReleaseDate *Date
	Duration    *int
	Genre       []string // nil leaves genre unchanged; an empty slice clears it
}

// Empty reports whether the patch changes nothing.
func (p MoviePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.PosterURL == nil &&
		p.Rating == nil && p.ReleaseDate == nil && p.Duration == nil && p.Genre == nil
}

// SortKey names a sortable catalog attribute as clients spell it.
type SortKey string

const (
	SortRating      SortKey = "rating"
	SortReleaseDate SortKey = "releaseDate"
	SortDuration    SortKey = "duration"
	SortName        SortKey = "name"
)

// SortKeys is the precedence order for compound sorts.
var SortKeys = []SortKey{SortRating, SortReleaseDate, SortDuration, SortName}

// SortField is one directive of a compound sort.
type SortField struct {
	Key  SortKey
	Desc bool
}

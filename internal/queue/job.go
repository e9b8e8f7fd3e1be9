// Package queue moves movie creations from the API to the insert worker
// over RabbitMQ. The API publishes an InsertMovieJob and answers 202; the
// worker writes the row and acknowledges the message.
package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cinevault/internal/model"
)

const (
	InsertQueue     = "movie.insert"
	DeadLetterQueue = "movie.insert.dlq"
)

// InsertMovieJob is the message body on InsertQueue. It carries fully
// validated fields and the final poster URL, so the worker never touches
// object storage.
type InsertMovieJob struct {
	JobID          string     `json:"jobId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	PosterURL      string     `json:"posterUrl"`
	Rating         float64    `json:"rating"`
	ReleaseDate    model.Date `json:"releaseDate"`
	Duration       int        `json:"duration"`
	Genre          []string   `json:"genre"`
	CreatedBy      uint64     `json:"createdBy"`
	EnqueuedAt     time.Time  `json:"enqueuedAt"`
}

// NewInsertMovieJob builds the job for m on behalf of creatorID. JobID and
// EnqueuedAt are set by the publisher.
func NewInsertMovieJob(m model.Movie, creatorID uint64) InsertMovieJob {
	genre := m.Genre
	if genre == nil {
		genre = []string{}
	}
	return InsertMovieJob{
		IdempotencyKey: IdempotencyKey(m, creatorID),
		Title:          m.Title,
		Description:    m.Description,
		PosterURL:      m.PosterURL,
		Rating:         m.Rating,
		ReleaseDate:    m.ReleaseDate,
		Duration:       m.Duration,
		Genre:          genre,
		CreatedBy:      creatorID,
	}
}

// Movie converts the job back into the row the worker inserts.
func (j InsertMovieJob) Movie() model.Movie {
	m := model.Movie{
		Title:       j.Title,
		Description: j.Description,
		PosterURL:   j.PosterURL,
		Rating:      j.Rating,
		ReleaseDate: j.ReleaseDate,
		Duration:    j.Duration,
		Genre:       j.Genre,
	}
	if j.CreatedBy != 0 {
		by := j.CreatedBy
		m.CreatedBy = &by
	}
	return m
}

// Validate rejects payloads the worker must not insert.
func (j InsertMovieJob) Validate() error {
	var problems []string
	if len(j.IdempotencyKey) != sha256.Size*2 {
		problems = append(problems, "idempotencyKey must be a sha256 hex digest")
	}
	if strings.TrimSpace(j.Title) == "" {
		problems = append(problems, "title is required")
	}
	if j.PosterURL == "" {
		problems = append(problems, "posterUrl is required")
	}
	if j.Rating < 0 || j.Rating > 10 {
		problems = append(problems, "rating out of range")
	}
	if j.Duration <= 0 {
		problems = append(problems, "duration must be positive")
	}
	if j.ReleaseDate.IsZero() {
		problems = append(problems, "releaseDate is required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DecodeJob parses and validates a message body.
func DecodeJob(body []byte) (InsertMovieJob, error) {
	var j InsertMovieJob
	if err := json.Unmarshal(body, &j); err != nil {
		return InsertMovieJob{}, fmt.Errorf("decode insert job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return InsertMovieJob{}, fmt.Errorf("invalid insert job: %w", err)
	}
	return j, nil
}

// IdempotencyKey digests the normalized create payload and the creator.
// Re-submitting the same movie as the same admin yields the same key.
func IdempotencyKey(m model.Movie, creatorID uint64) string {
	genre := make([]string, len(m.Genre))
	for i, g := range m.Genre {
		genre[i] = strings.ToLower(strings.TrimSpace(g))
	}
	fields := []string{
		strings.ToLower(strings.TrimSpace(m.Title)),
		strings.TrimSpace(m.Description),
		m.PosterURL,
		strconv.FormatFloat(m.Rating, 'f', -1, 64),
		m.ReleaseDate.String(),
		strconv.Itoa(m.Duration),
		strings.Join(genre, ","),
		strconv.FormatUint(creatorID, 10),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// DeadLetter is the message body on DeadLetterQueue.
type DeadLetter struct {
	Job      json.RawMessage `json:"job"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failedAt"`
}

func newDeadLetter(body []byte, cause error, attempts int) ([]byte, error) {
	job := json.RawMessage(body)
	if !json.Valid(body) {
		// Keep unparseable bodies inspectable as a JSON string.
		quoted, err := json.Marshal(string(body))
		if err != nil {
			return nil, err
		}
		job = quoted
	}
	msg := DeadLetter{Job: job, Attempts: attempts, FailedAt: time.Now().UTC()}
	if cause != nil {
		msg.Error = cause.Error()
	}
	return json.Marshal(msg)
}

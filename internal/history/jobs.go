package history

import (
	"context"
	"fmt"
	"time"
)

// JobRow is one caption job record.
type JobRow struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Mode          string    `json:"mode"`   // "http" or "watch"
	Status        string    `json:"status"` // "completed" or "failed"
	Error         string    `json:"error,omitempty"`
	DurationMs    int       `json:"duration_ms"`
	VideoDuration float64   `json:"video_duration"`
	WordCount     int       `json:"word_count"`
	Model         string    `json:"model,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Encoder       string    `json:"encoder,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Insert stores a finished job.
func (db *DB) Insert(ctx context.Context, row *JobRow) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO caption_jobs
			(id, filename, mode, status, error, duration_ms, video_duration,
			 word_count, model, provider, encoder, result_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, NULLIF($12, ''))`,
		row.ID, row.Filename, row.Mode, row.Status, row.Error, row.DurationMs,
		row.VideoDuration, row.WordCount, row.Model, row.Provider, row.Encoder, row.ResultURL,
	)
	if err != nil {
		return fmt.Errorf("insert caption job: %w", err)
	}
	return nil
}

// List returns recent jobs, newest first.
func (db *DB) List(ctx context.Context, limit, offset int) ([]JobRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, filename, mode, status, COALESCE(error, ''), duration_ms,
		       video_duration, word_count, COALESCE(model, ''),
		       COALESCE(provider, ''), COALESCE(encoder, ''),
		       COALESCE(result_url, ''), created_at
		FROM caption_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list caption jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRow
	for rows.Next() {
		var r JobRow
		if err := rows.Scan(
			&r.ID, &r.Filename, &r.Mode, &r.Status, &r.Error, &r.DurationMs,
			&r.VideoDuration, &r.WordCount, &r.Model, &r.Provider, &r.Encoder,
			&r.ResultURL, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan caption job: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

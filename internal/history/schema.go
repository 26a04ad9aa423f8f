package history

import (
	"context"
	"fmt"
)

// schema is the idempotent bootstrap for the job history table.
const schema = `
CREATE TABLE IF NOT EXISTS caption_jobs (
    id             uuid PRIMARY KEY,
    filename       text NOT NULL,
    mode           text NOT NULL,
    status         text NOT NULL,
    error          text,
    duration_ms    int NOT NULL DEFAULT 0,
    video_duration double precision,
    word_count     int NOT NULL DEFAULT 0,
    model          text,
    provider       text,
    encoder        text,
    result_url     text,
    created_at     timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_caption_jobs_created_at ON caption_jobs (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_caption_jobs_status ON caption_jobs (status);
`

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

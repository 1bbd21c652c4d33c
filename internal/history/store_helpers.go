package history

import (
	"database/sql"
	"errors"
	"time"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec         Record
		cancelled   int64
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		elapsedMS   int64
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Input,
		&rec.Output,
		&rec.Device,
		&rec.Preset,
		&rec.Status,
		&rec.Passes,
		&rec.CompletedPasses,
		&cancelled,
		&errMsg,
		&startedRaw,
		&finishedRaw,
		&elapsedMS,
	); err != nil {
		return Record{}, err
	}
	rec.Cancelled = cancelled != 0
	rec.ErrorMessage = errMsg.String
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if started, err := parseTimeString(startedRaw); err == nil {
		rec.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			rec.FinishedAt = &finished
		}
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

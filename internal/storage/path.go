package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildTranscriptPath returns sessions/date=YYYY-MM-DD/<session-id>.parquet,
// dated by the session start in UTC.
func BuildTranscriptPath(sessionID string, startedAt time.Time) (string, error) {
	if !keyComponentPattern.MatchString(sessionID) {
		return "", fmt.Errorf("invalid session id: %q", sessionID)
	}
	if startedAt.IsZero() {
		return "", fmt.Errorf("session start time is required")
	}
	ts := startedAt.UTC()
	return path.Join(
		"sessions",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		sessionID+".parquet",
	), nil
}

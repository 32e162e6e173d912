package core

import "time"

// TimestampLayout matches the ISO-8601 form expected in X-BCA-Timestamp,
// millisecond precision with a Z suffix for UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(TimestampLayout, value)
}

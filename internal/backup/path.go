package backup

import (
	"strings"
	"time"
)

// pathTimeLayout renders the export time into the destination prefix as
// {YYYY}/{MM}/{DD}/{HHMMSS}.
const pathTimeLayout = "2006/01/02/150405"

// PreviousMonthEnd returns the last second of the month before now, in
// now's location.
func PreviousMonthEnd(now time.Time) time.Time {
	year, month, _ := now.Date()
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	lastDay := firstOfMonth.AddDate(0, 0, -1)
	return time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 0, now.Location())
}

// DestinationPrefix builds the S3 key prefix an export is written
// under: {prefix}/{tableName}/{YYYY}/{MM}/{DD}/{HHMMSS}. The leading
// prefix segment is omitted when not configured.
func DestinationPrefix(prefix, tableName string, exportTime time.Time) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, "/"))
	}
	parts = append(parts, tableName, exportTime.Format(pathTimeLayout))
	return strings.Join(parts, "/")
}

// S3Location renders the bucket (and optional prefix) as an s3:// URI.
func S3Location(bucket, prefix string) string {
	if prefix == "" {
		return "s3://" + bucket
	}
	return "s3://" + bucket + "/" + strings.Trim(prefix, "/")
}

// ExportID extracts the export identifier from an export ARN, which is
// its last path segment.
func ExportID(exportArn string) string {
	if i := strings.LastIndex(exportArn, "/"); i >= 0 {
		return exportArn[i+1:]
	}
	return exportArn
}

// ManifestSummaryKey returns the key of the manifest summary the
// service writes for a completed export:
// {destinationPrefix}/AWSDynamoDB/{exportID}/manifest-summary.json.
func ManifestSummaryKey(destinationPrefix, exportArn string) string {
	return destinationPrefix + "/AWSDynamoDB/" + ExportID(exportArn) + "/manifest-summary.json"
}

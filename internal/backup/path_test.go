package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid month",
			now:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
			want: time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "january rolls into previous year",
			now:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			want: time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "first of month",
			now:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "march after non-leap february",
			now:  time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2023, 2, 28, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(PreviousMonthEnd(tt.now)),
				"got %s", PreviousMonthEnd(tt.now))
		})
	}
}

func TestPreviousMonthEnd_KeepsLocation(t *testing.T) {
	jst, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, jst)
	got := PreviousMonthEnd(now)
	assert.Equal(t, "2024-02-29T23:59:59+09:00", got.Format(time.RFC3339))
}

func TestDestinationPrefix(t *testing.T) {
	exportTime := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "archive/Orders-restored-1709251200/2024/03/01/000000",
		DestinationPrefix("archive", "Orders-restored-1709251200", exportTime))

	// No configured prefix: the table name leads.
	assert.Equal(t, "Orders/2024/03/01/000000",
		DestinationPrefix("", "Orders", exportTime))

	// Surrounding slashes in the prefix are not duplicated.
	assert.Equal(t, "a/b/Orders/2024/03/01/000000",
		DestinationPrefix("/a/b/", "Orders", exportTime))
}

func TestDestinationPrefix_TimeOfDay(t *testing.T) {
	exportTime := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "Orders/2024/12/31/235959", DestinationPrefix("", "Orders", exportTime))
}

func TestS3Location(t *testing.T) {
	assert.Equal(t, "s3://my-bucket", S3Location("my-bucket", ""))
	assert.Equal(t, "s3://my-bucket/archive", S3Location("my-bucket", "archive"))
	assert.Equal(t, "s3://my-bucket/a/b", S3Location("my-bucket", "/a/b/"))
}

func TestExportID(t *testing.T) {
	arn := "arn:aws:dynamodb:ap-northeast-1:123456789012:table/Orders/export/01234567890123-abcdef12"
	assert.Equal(t, "01234567890123-abcdef12", ExportID(arn))
	assert.Equal(t, "plain", ExportID("plain"))
}

func TestManifestSummaryKey(t *testing.T) {
	arn := "arn:aws:dynamodb:ap-northeast-1:123456789012:table/Orders/export/01234567890123-abcdef12"
	assert.Equal(t,
		"archive/Orders/2024/03/01/000000/AWSDynamoDB/01234567890123-abcdef12/manifest-summary.json",
		ManifestSummaryKey("archive/Orders/2024/03/01/000000", arn))
}

package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/klauspost/compress/gzip"

	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// ManifestSummary is the index the export service writes next to the
// data files of a completed export.
type ManifestSummary struct {
	Version            string `json:"version"`
	ExportArn          string `json:"exportArn"`
	TableArn           string `json:"tableArn"`
	ExportTime         string `json:"exportTime"`
	S3Bucket           string `json:"s3Bucket"`
	S3Prefix           string `json:"s3Prefix"`
	ManifestFilesS3Key string `json:"manifestFilesS3Key"`
	ItemCount          int64  `json:"itemCount"`
	BilledSizeBytes    int64  `json:"billedSizeBytes"`
	OutputFormat       string `json:"outputFormat"`
}

// manifestFileEntry is one line of manifest-files.json.
type manifestFileEntry struct {
	ItemCount     int64  `json:"itemCount"`
	MD5Checksum   string `json:"md5Checksum"`
	DataFileS3Key string `json:"dataFileS3Key"`
}

// ManifestVerifier checks that a completed export actually left a
// readable artifact behind: the manifest summary decodes, the file list
// is present, and the first data file is valid gzip.
type ManifestVerifier struct {
	objects dynamo.ObjectAPI
	logger  *logging.Logger
}

// NewManifestVerifier creates a verifier over the given object store.
func NewManifestVerifier(objects dynamo.ObjectAPI, logger *logging.Logger) *ManifestVerifier {
	return &ManifestVerifier{objects: objects, logger: logger}
}

// Verify fetches and checks the manifest of the export written under
// destinationPrefix, returning the decoded summary.
func (v *ManifestVerifier) Verify(ctx context.Context, bucket, destinationPrefix, exportArn string) (*ManifestSummary, error) {
	summaryKey := ManifestSummaryKey(destinationPrefix, exportArn)

	summary, err := v.fetchSummary(ctx, bucket, summaryKey)
	if err != nil {
		return nil, err
	}

	dataFiles, err := v.fetchFileList(ctx, bucket, summary.ManifestFilesS3Key)
	if err != nil {
		return nil, err
	}

	v.logger.WithFields(map[string]interface{}{
		"operation":  "manifest_verify",
		"bucket":     bucket,
		"key":        summaryKey,
		"item_count": summary.ItemCount,
		"data_files": len(dataFiles),
	}).Info("Export manifest verified")

	// An export of an empty table has a manifest but no data files.
	if len(dataFiles) > 0 {
		if err := v.checkDataFile(ctx, bucket, dataFiles[0].DataFileS3Key); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

func (v *ManifestVerifier) fetchSummary(ctx context.Context, bucket, key string) (*ManifestSummary, error) {
	out, err := v.objects.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			fmt.Sprintf("export manifest summary not readable at s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	var summary ManifestSummary
	if err := json.NewDecoder(out.Body).Decode(&summary); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			"failed to decode export manifest summary", err)
	}
	if summary.ManifestFilesS3Key == "" {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			"export manifest summary has no file list key", nil)
	}
	return &summary, nil
}

// fetchFileList reads manifest-files.json, which is one JSON object per
// line.
func (v *ManifestVerifier) fetchFileList(ctx context.Context, bucket, key string) ([]manifestFileEntry, error) {
	out, err := v.objects.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			fmt.Sprintf("export file manifest not readable at s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	var entries []manifestFileEntry
	scanner := bufio.NewScanner(out.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry manifestFileEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
				"failed to decode export file manifest entry", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			"failed to read export file manifest", err)
	}
	return entries, nil
}

// checkDataFile confirms the data file is valid gzip by reading its
// first block.
func (v *ManifestVerifier) checkDataFile(ctx context.Context, bucket, key string) error {
	out, err := v.objects.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			fmt.Sprintf("export data file not readable at s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	gz, err := gzip.NewReader(out.Body)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			fmt.Sprintf("export data file %s is not valid gzip", key), err)
	}
	defer gz.Close()

	buf := make([]byte, 512)
	if _, err := gz.Read(buf); err != nil && err != io.EOF {
		return apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
			fmt.Sprintf("export data file %s is not readable", key), err)
	}
	return nil
}

package backup

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dynamodb-backup-export/internal/errors"
)

const verifyExportArn = "arn:aws:dynamodb:ap-northeast-1:123456789012:table/Orders/export/01234567890123-abcdef12"

func gzipBytes(t *testing.T, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func manifestObjects(t *testing.T, destPrefix string) map[string][]byte {
	t.Helper()
	exportDir := destPrefix + "/AWSDynamoDB/01234567890123-abcdef12"
	return map[string][]byte{
		exportDir + "/manifest-summary.json": []byte(`{
			"version": "2020-06-30",
			"exportArn": "` + verifyExportArn + `",
			"exportTime": "2024-03-01T00:00:00.000Z",
			"s3Bucket": "my-bucket",
			"manifestFilesS3Key": "` + exportDir + `/manifest-files.json",
			"itemCount": 3,
			"outputFormat": "DYNAMODB_JSON"
		}`),
		exportDir + "/manifest-files.json": []byte(
			`{"itemCount": 2, "md5Checksum": "aaa=", "dataFileS3Key": "` + exportDir + `/data/part-1.json.gz"}` + "\n" +
				`{"itemCount": 1, "md5Checksum": "bbb=", "dataFileS3Key": "` + exportDir + `/data/part-2.json.gz"}` + "\n"),
		exportDir + "/data/part-1.json.gz": gzipBytes(t, `{"Item":{"pk":{"S":"1"}}}`),
	}
}

func TestVerify_HappyPath(t *testing.T) {
	destPrefix := "archive/Orders/2024/03/01/000000"
	objects := &mockObjectAPI{objects: manifestObjects(t, destPrefix)}

	verifier := NewManifestVerifier(objects, quietLogger())
	summary, err := verifier.Verify(context.Background(), "my-bucket", destPrefix, verifyExportArn)
	require.NoError(t, err)

	assert.Equal(t, verifyExportArn, summary.ExportArn)
	assert.Equal(t, int64(3), summary.ItemCount)
	// Summary, file list, then the first data file.
	require.Len(t, objects.getCalls, 3)
	assert.Equal(t, destPrefix+"/AWSDynamoDB/01234567890123-abcdef12/manifest-summary.json", objects.getCalls[0])
	assert.Equal(t, destPrefix+"/AWSDynamoDB/01234567890123-abcdef12/data/part-1.json.gz", objects.getCalls[2])
}

func TestVerify_MissingSummary(t *testing.T) {
	objects := &mockObjectAPI{objects: map[string][]byte{}}

	verifier := NewManifestVerifier(objects, quietLogger())
	_, err := verifier.Verify(context.Background(), "my-bucket", "archive", verifyExportArn)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeExportFailure, apperrors.GetErrorType(err))
	assert.Contains(t, err.Error(), "manifest summary not readable")
}

func TestVerify_EmptyExportHasNoDataFiles(t *testing.T) {
	destPrefix := "archive/Orders/2024/03/01/000000"
	exportDir := destPrefix + "/AWSDynamoDB/01234567890123-abcdef12"
	objects := &mockObjectAPI{objects: map[string][]byte{
		exportDir + "/manifest-summary.json": []byte(`{
			"exportArn": "` + verifyExportArn + `",
			"manifestFilesS3Key": "` + exportDir + `/manifest-files.json",
			"itemCount": 0
		}`),
		exportDir + "/manifest-files.json": []byte(""),
	}}

	verifier := NewManifestVerifier(objects, quietLogger())
	summary, err := verifier.Verify(context.Background(), "my-bucket", destPrefix, verifyExportArn)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.ItemCount)
	// No data file to spot-check.
	assert.Len(t, objects.getCalls, 2)
}

func TestVerify_CorruptDataFile(t *testing.T) {
	destPrefix := "archive/Orders/2024/03/01/000000"
	objs := manifestObjects(t, destPrefix)
	objs[destPrefix+"/AWSDynamoDB/01234567890123-abcdef12/data/part-1.json.gz"] = []byte("not gzip at all")
	objects := &mockObjectAPI{objects: objs}

	verifier := NewManifestVerifier(objects, quietLogger())
	_, err := verifier.Verify(context.Background(), "my-bucket", destPrefix, verifyExportArn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid gzip")
}

func TestVerify_SummaryWithoutFileListKey(t *testing.T) {
	destPrefix := "archive/Orders/2024/03/01/000000"
	exportDir := destPrefix + "/AWSDynamoDB/01234567890123-abcdef12"
	objects := &mockObjectAPI{objects: map[string][]byte{
		exportDir + "/manifest-summary.json": []byte(`{"exportArn": "` + verifyExportArn + `"}`),
	}}

	verifier := NewManifestVerifier(objects, quietLogger())
	_, err := verifier.Verify(context.Background(), "my-bucket", destPrefix, verifyExportArn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file list key")
}

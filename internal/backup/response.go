package backup

import (
	"encoding/json"
	"time"
)

// ResponseBody is the payload of a job result.
type ResponseBody struct {
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	ExportArn  string `json:"exportArn,omitempty" yaml:"exportArn,omitempty"`
	ExportTime string `json:"exportTime,omitempty" yaml:"exportTime,omitempty"`
	S3Location string `json:"s3Location,omitempty" yaml:"s3Location,omitempty"`
}

// Response is the structured result of a job run: statusCode 200 with
// the export identifier and destination on success, 500 with an error
// message on failure.
type Response struct {
	StatusCode int          `json:"statusCode" yaml:"statusCode"`
	Body       ResponseBody `json:"body" yaml:"body"`
}

// NewSuccessResponse builds a 200 response for a started or completed
// export.
func NewSuccessResponse(message, exportArn string, exportTime time.Time, s3Location string) Response {
	return Response{
		StatusCode: 200,
		Body: ResponseBody{
			Message:    message,
			ExportArn:  exportArn,
			ExportTime: exportTime.Format(time.RFC3339),
			S3Location: s3Location,
		},
	}
}

// NewErrorResponse builds a 500 response carrying the error message.
func NewErrorResponse(err error) Response {
	return Response{
		StatusCode: 500,
		Body: ResponseBody{
			Error: err.Error(),
		},
	}
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.StatusCode == 200
}

// JSON renders the response as JSON.
func (r Response) JSON() ([]byte, error) {
	return json.Marshal(r)
}

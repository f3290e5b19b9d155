package converter

// Status is the processing state of one source document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// OnErrorMode defines the behavior when a document fails.
type OnErrorMode string

const (
	OnErrorContinue OnErrorMode = "continue"
	OnErrorStop     OnErrorMode = "stop"
)

// UploaderKind selects where resolved images are hosted.
type UploaderKind string

const (
	// UploaderReadMe posts images to the ReadMe upload endpoint.
	UploaderReadMe UploaderKind = "readme"
	// UploaderS3 puts images into an S3-compatible bucket.
	UploaderS3 UploaderKind = "s3"
)

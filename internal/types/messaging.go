package types

// This file defines the SQS transport envelopes that move a letter
// through the pipeline. JSON tags use snake_case to match the payloads
// exchanged with the external rendering/sanitising and scanning services.
//
// Envelopes that are retried carry RetryCount: workers increment it
// before re-publishing on transient failure, so the next consumer sees an
// accurate attempt number and can decide when escalation is due.

// RenderRequestMessage asks the letter worker to assemble and dispatch a
// rendering job for a templated letter.
type RenderRequestMessage struct {
	NotificationID string `json:"notification_id"`
	RetryCount     int    `json:"retry_count"`
	TraceID        string `json:"trace_id"`
}

// BillableUnitsMessage records the page count reported back by the
// renderer so billing can be updated.
type BillableUnitsMessage struct {
	NotificationID string `json:"notification_id"`
	PageCount      int    `json:"page_count"`
	RetryCount     int    `json:"retry_count"`
	TraceID        string `json:"trace_id"`
}

// RenderJobTemplate is the template snapshot embedded in a render job.
type RenderJobTemplate struct {
	Subject      string `json:"subject"`
	Content      string `json:"content"`
	TemplateType string `json:"template_type"`
}

// RenderJobPayload is the sealed payload handed to the external
// renderer/sanitiser. It carries everything needed to produce the PDF,
// including the destination filename derived from the notification.
type RenderJobPayload struct {
	LetterContactBlock string            `json:"letter_contact_block"`
	Template           RenderJobTemplate `json:"template"`
	Values             map[string]string `json:"values"`
	LogoFilename       string            `json:"logo_filename,omitempty"`
	LetterFilename     string            `json:"letter_filename"`
	NotificationID     string            `json:"notification_id"`
	KeyType            KeyType           `json:"key_type"`
}

// ScanPassedMessage is the scanner's pass callback: the named file in the
// scan-intake bucket is clean and may proceed to sanitisation.
type ScanPassedMessage struct {
	Filename   string `json:"filename"`
	RetryCount int    `json:"retry_count"`
	TraceID    string `json:"trace_id"`
}

// SanitiseJobMessage is dispatched to the external sanitiser once a scan
// has passed.
type SanitiseJobMessage struct {
	NotificationID            string `json:"notification_id"`
	Filename                  string `json:"filename"`
	AllowInternationalLetters bool   `json:"allow_international_letters"`
}

// SanitisedResultMessage wraps the sealed sanitiser outcome as it arrives
// on the queue. Data is the base64 sealed box; workers open it into a
// SanitiseOutcome.
type SanitisedResultMessage struct {
	Data       string `json:"data"`
	RetryCount int    `json:"retry_count"`
	TraceID    string `json:"trace_id"`
}

// SanitiseOutcome is the decrypted sanitiser verdict for one letter PDF.
type SanitiseOutcome struct {
	Filename         string           `json:"filename"`
	NotificationID   string           `json:"notification_id"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Message          string           `json:"message,omitempty"`
	InvalidPages     []int            `json:"invalid_pages,omitempty"`
	PageCount        int              `json:"page_count"`
	Address          string           `json:"address,omitempty"`
}

// ScanFailureMessage is the scanner's fail callback for a file it either
// rejected or could not scan.
type ScanFailureMessage struct {
	Filename string          `json:"filename"`
	Kind     ScanFailureKind `json:"kind"`
	TraceID  string          `json:"trace_id"`
}

// ScanFileMessage asks the external antivirus service to scan a file in
// the scan-intake bucket. Used on first upload and on operator replay.
type ScanFileMessage struct {
	Filename string `json:"filename"`
}

// ZipBatchMessage is one print batch manifest emitted by the collator:
// the ordered member keys plus the archive name the zip worker must
// produce. TotalSize is informational, for logging and metrics.
type ZipBatchMessage struct {
	FilenamesToZip []string `json:"filenames_to_zip"`
	UploadFilename string   `json:"upload_filename"`
	ServiceID      string   `json:"service_id"`
	Postage        Postage  `json:"postage"`
	TotalSize      int64    `json:"total_size"`
	TraceID        string   `json:"trace_id"`
}

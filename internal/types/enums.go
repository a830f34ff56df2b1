package types

// Status represents the lifecycle state of a letter notification.
type Status string

const (
	StatusPendingVirusCheck Status = "pending-virus-check"
	StatusCreated           Status = "created"
	StatusDelivered         Status = "delivered"
	StatusValidationFailed  Status = "validation-failed"
	StatusVirusScanFailed   Status = "virus-scan-failed"
	StatusTechnicalFailure  Status = "technical-failure"
)

// KeyType identifies the API key class a notification was sent with.
// Test-key letters are never physically printed: they short-circuit to
// "delivered" as soon as they become printable.
type KeyType string

const (
	KeyTypeNormal KeyType = "normal"
	KeyTypeTest   KeyType = "test"
	KeyTypeTeam   KeyType = "team"
)

// Postage is the rate class of a letter. It affects billing, the PDF
// filename coding, and which print run the letter is collated into.
type Postage string

const (
	PostageFirst       Postage = "first"
	PostageSecond      Postage = "second"
	PostageEurope      Postage = "europe"
	PostageRestOfWorld Postage = "rest-of-world"
)

// PostageClasses is the ordered list of postage classes a collation run
// iterates over. Order here determines run order, nothing else.
var PostageClasses = []Postage{PostageFirst, PostageSecond, PostageEurope, PostageRestOfWorld}

// IsInternational reports whether the postage class is an overseas tier.
func (p Postage) IsInternational() bool {
	return p == PostageEurope || p == PostageRestOfWorld
}

// ScanFailureKind distinguishes the two ways the external virus scanner
// can report a file it did not pass.
type ScanFailureKind string

const (
	// ScanFailureRejected means the scanner ran and rejected the file.
	ScanFailureRejected ScanFailureKind = "rejected"
	// ScanFailureError means the scanner itself broke; the file was never
	// meaningfully scanned and needs operator attention.
	ScanFailureError ScanFailureKind = "error"
)

// ValidationStatus is the outcome reported by the external sanitiser.
type ValidationStatus string

const (
	ValidationPassed ValidationStatus = "passed"
	ValidationFailed ValidationStatus = "failed"
)

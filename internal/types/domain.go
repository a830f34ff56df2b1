package types

import (
	"time"
)

// Notification is the persisted letter record. The notification store
// owns the authoritative copy; the pipeline only reads it and issues
// update commands, so this struct carries no behaviour beyond accessors.
type Notification struct {
	ID        string `json:"id" db:"id"`
	Reference string `json:"reference" db:"reference"`
	ServiceID string `json:"service_id" db:"service_id"`

	Status        Status  `json:"status" db:"status"`
	KeyType       KeyType `json:"key_type" db:"key_type"`
	Postage       Postage `json:"postage" db:"postage"`
	BillableUnits int     `json:"billable_units" db:"billable_units"`
	International bool    `json:"international" db:"international"`

	// Recipient address text as supplied, or as decoded by the sanitiser.
	To string `json:"to" db:"to"`

	// Rendering inputs, snapshot at acceptance time.
	TemplateSubject string            `json:"template_subject" db:"template_subject"`
	TemplateContent string            `json:"template_content" db:"template_content"`
	TemplateType    string            `json:"template_type" db:"template_type"`
	Personalisation map[string]string `json:"personalisation" db:"personalisation"`
	ReplyToText     string            `json:"reply_to_text" db:"reply_to_text"`

	// Service attributes hydrated by the repository joins.
	Crown                     bool   `json:"crown" db:"crown"`
	AllowInternationalLetters bool   `json:"allow_international_letters" db:"allow_international_letters"`
	LetterBrandingFilename    string `json:"letter_branding_filename,omitempty" db:"letter_branding_filename"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// IsTestKey reports whether the letter was sent with a test API key and
// is therefore exempt from billing and physical dispatch.
func (n *Notification) IsTestKey() bool {
	return n.KeyType == KeyTypeTest
}

// LetterForPrint is one "created" letter as selected for a collation run:
// the notification identity plus what the batch constructor needs to pack
// it (resolved object key, byte size, owning service).
type LetterForPrint struct {
	NotificationID string    `db:"id"`
	Reference      string    `db:"reference"`
	ServiceID      string    `db:"service_id"`
	Postage        Postage   `db:"postage"`
	Crown          bool      `db:"crown"`
	CreatedAt      time.Time `db:"created_at"`
}

// LetterPDF is a resolved print-run entry: the object key inside the
// letters archive bucket, its size from a Head call, and the service that
// owns it. Batch grouping operates on these.
type LetterPDF struct {
	Key       string
	Size      int64
	ServiceID string
}

// NotificationUpdate is the field set applied atomically by reference
// when a scan or sanitise outcome lands. Nil pointers mean "leave as is".
type NotificationUpdate struct {
	Status        Status
	BillableUnits int
	To            *string
	Postage       *Postage
	International *bool
}

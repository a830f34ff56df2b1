// Package batch implements the print batch constructor: the scheduled
// collation of ready letters into dated, size-bounded archive manifests
// handed to the zip worker.
package batch

import (
	"postroom/internal/letters"
	"postroom/internal/types"
)

// Limits bounds one print archive.
type Limits struct {
	// MaxBytes is the maximum total size of the PDFs in one archive.
	MaxBytes int64
	// MaxCount is the maximum number of PDFs in one archive.
	MaxCount int
}

// GroupLetters packs the ordered letters into archive groups with a
// single greedy pass. A new group starts whenever adding the next letter
// would exceed MaxBytes, the group already holds MaxCount members, or
// the next letter belongs to a different service: the print partner
// requires every archive to contain exactly one service's letters.
//
// A single letter larger than MaxBytes becomes a group of one. Entries
// whose key is not a PDF are skipped entirely. The packing is purely a
// function of the input order and the limits, which is what makes batch
// membership reproducible given the store's deterministic ordering.
func GroupLetters(pdfs []types.LetterPDF, limits Limits) [][]types.LetterPDF {
	var groups [][]types.LetterPDF
	var group []types.LetterPDF
	var groupSize int64
	var groupService string

	flush := func() {
		if len(group) > 0 {
			groups = append(groups, group)
		}
		group = nil
		groupSize = 0
		groupService = ""
	}

	for _, pdf := range pdfs {
		if !letters.IsPDFKey(pdf.Key) {
			continue
		}

		if len(group) > 0 &&
			(groupSize+pdf.Size > limits.MaxBytes ||
				len(group) >= limits.MaxCount ||
				pdf.ServiceID != groupService) {
			flush()
		}

		if len(group) == 0 {
			groupService = pdf.ServiceID
		}
		group = append(group, pdf)
		groupSize += pdf.Size
	}
	flush()

	return groups
}

// Package letters holds the naming and billing rules for letter PDFs:
// the deterministic object-key derivation shared by the rendering
// dispatch and the collation run, the page-count to billable-units
// table, and postage re-derivation from a decoded recipient address.
package letters

import (
	"fmt"
	"strings"
	"time"
	// Embed the tzdata database so Europe/London resolves inside
	// minimal Lambda images with no system zoneinfo.
	_ "time/tzdata"
)

const (
	// ProcessingDeadline is the local time-of-day cutoff for a print run.
	// Letters created after the deadline belong to the next day's run.
	ProcessingDeadline = 17*time.Hour + 30*time.Minute

	// letterKeyTimestampFormat is the creation-time component of a PDF key.
	letterKeyTimestampFormat = "20060102150405"
)

// printTimezone is the local timezone print-run days are reckoned in.
var printTimezone = mustLoadLocation("Europe/London")

// PrintLocation returns the local timezone print-run days are reckoned
// in. The collation cutoff must agree with the folder derivation here,
// so both use this location.
func PrintLocation() *time.Location {
	return printTimezone
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("letters: cannot load timezone %s: %v", name, err))
	}
	return loc
}

// postageFileCodes maps each postage class to its single-character code
// used in PDF keys and print archive names. Downstream systems parse
// these codes, so the table is wire format, not presentation.
var postageFileCodes = map[Postage]string{
	PostageFirst:       "1",
	PostageSecond:      "2",
	PostageEurope:      "E",
	PostageRestOfWorld: "N",
}

// PostageFileCode returns the filename code for a postage class. Unknown
// classes code as second class, the cheapest default, rather than
// producing a key downstream systems cannot parse.
func PostageFileCode(p Postage) string {
	if code, ok := postageFileCodes[p]; ok {
		return code
	}
	return postageFileCodes[PostageSecond]
}

// PDFFilename derives the object key for a letter PDF from its immutable
// inputs. The derivation is deterministic and recomputable: once the true
// postage class is known after sanitisation, calling this again with the
// same reference/crown/creation time yields the corrected canonical key.
//
// Key shape: {folder}NOTIFY.{reference}.D.{class}.C.{crown}.{timestamp}.pdf
// where folder is the print-day date ("2018-12-31/"), D marks duplex,
// C marks colour, and crown is C or N. Test letters pass ignoreFolder to
// land at the bucket root, outside any print-day folder.
func PDFFilename(reference string, crown bool, createdAt time.Time, ignoreFolder bool, postage Postage) string {
	crownCode := "N"
	if crown {
		crownCode = "C"
	}

	folder := ""
	if !ignoreFolder {
		folder = PrintDayFolder(createdAt)
	}

	return fmt.Sprintf("%sNOTIFY.%s.D.%s.C.%s.%s.pdf",
		folder,
		reference,
		PostageFileCode(postage),
		crownCode,
		createdAt.UTC().Format(letterKeyTimestampFormat),
	)
}

// PrintDayFolder returns the date folder ("2018-12-31/") a letter created
// at the given instant files under. Creation after the local processing
// deadline rolls the letter into the next day's print run.
func PrintDayFolder(createdAt time.Time) string {
	local := createdAt.In(printTimezone)
	if sinceMidnight(local) > ProcessingDeadline {
		local = local.AddDate(0, 0, 1)
	}
	return local.Format("2006-01-02") + "/"
}

// sinceMidnight returns the wall-clock offset of t within its day.
func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// ReferenceFromFilename extracts the client-visible reference from a
// letter PDF key. The reference is the second dot-separated component,
// after any date folder is stripped: NOTIFY.{reference}.D...
func ReferenceFromFilename(filename string) string {
	base := filename
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// IsPDFKey reports whether the object key names a letter PDF. Collation
// only packs PDF members; anything else in the bucket is ignored.
func IsPDFKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".pdf")
}

package batch

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"postroom/internal/letters"
	"postroom/internal/types"
)

// hashLength is the truncated length of the content fingerprint embedded
// in an archive filename.
const hashLength = 20

// ArchiveFilename builds the print archive name for one letter group.
// The format is parsed by the print partner and is byte-exact:
//
//	NOTIFY.2018-12-31.2.001.Wjrui5nAvObjPd-3GEL-.<service-uuid>.ZIP
//
// The hash is a URL-safe base64 SHA-512 over the member keys in order,
// truncated to 20 characters: identical membership always produces the
// same name, and any membership change produces a visibly different one.
// Sequence numbers start at 1 and are per postage class within one
// collation run.
func ArchiveFilename(runDate time.Time, postage types.Postage, sequence int, group []types.LetterPDF) string {
	keys := make([]string, len(group))
	for i, pdf := range group {
		keys[i] = pdf.Key
	}

	digest := sha512.Sum512([]byte(strings.Join(keys, "")))
	hash := base64.URLEncoding.EncodeToString(digest[:])[:hashLength]

	return fmt.Sprintf("NOTIFY.%s.%s.%03d.%s.%s.ZIP",
		runDate.Format("2006-01-02"),
		letters.PostageFileCode(postage),
		sequence,
		hash,
		group[0].ServiceID,
	)
}

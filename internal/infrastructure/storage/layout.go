package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// OrderDocumentPath returns the relative storage path for a generated
// purchase order document, grouped by the month the order was placed.
// The request title is folded into the file name for humans browsing the
// directory; the order ID keeps it unique.
func OrderDocumentPath(title, orderID string, placedAt time.Time) string {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	name := SanitizeFileName(title)
	if name == "" {
		name = "order"
	}
	return filepath.Join(
		"orders",
		placedAt.Format("2006"),
		placedAt.Format("01"),
		fmt.Sprintf("PO-%s-%s.xlsx", name, short),
	)
}

// SanitizeFileName strips path separators and anything else that is not
// safe across filesystems, folding runs of stripped characters into a
// single hyphen.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFileChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-_")
	if len(name) > 64 {
		name = name[:64]
	}
	return strings.ToLower(name)
}

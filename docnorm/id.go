package docnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// documentID derives a document identifier from content and filename:
// "doc_<unix seconds>_<first 12 hex chars of sha256(content ++ filename)>".
// Identical inputs reprocessed within the same second yield the same ID.
func documentID(content []byte, filename string, now time.Time) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte(filename))
	digest := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("doc_%d_%s", now.Unix(), digest[:12])
}

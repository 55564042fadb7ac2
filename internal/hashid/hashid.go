// Package hashid derives the content-addressed identifiers used across
// the indexer: file IDs, symbol content hashes, and ref IDs. Every
// identifier is a SHA-256 of a canonical UTF-8 string, so IDs are
// reproducible across runs and across machines.
package hashid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an OS-reported relative path into the POSIX
// form used as the stable identifier everywhere in the system
// (forward slashes, no leading "./", no trailing slash).
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// FileID returns the stable identifier for a file given its POSIX
// relative path: sha256("file:" + posix_rel_path).
func FileID(posixRelPath string) string {
	return sha256Hex("file:" + posixRelPath)
}

// ContentHash returns the stable identifier for a symbol's declaration
// signature (not its body): sha256("file:<p>\nkind:<k>\nname:<n>\nsignature:<s>").
func ContentHash(path, kind, name, signature string) string {
	s := fmt.Sprintf("file:%s\nkind:%s\nname:%s\nsignature:%s", path, kind, name, signature)
	return sha256Hex(s)
}

// RefID returns the identifier for a single occurrence of a symbol:
// sha256("<p>:<n>:<k>:<start>:<end>:<content_hash>").
func RefID(path, name, kind string, start, end int, contentHash string) string {
	s := fmt.Sprintf("%s:%s:%s:%d:%d:%s", path, name, kind, start, end, contentHash)
	return sha256Hex(s)
}

// BlobHash returns the content-addressed hash of arbitrary file bytes
// (used for chunk dedup and DSR symbol-body hashing), independent of
// the structured identifiers above.
func BlobHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

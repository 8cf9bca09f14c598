package common

import "strings"

// NormalizeInfoHash canonicalizes a content hash as reported by a listing
// upstream: lowercase, no surrounding whitespace, no urn or magnet prefix.
// Validity (hex, length) is the caller's concern.
func NormalizeInfoHash(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "magnet:?xt=")
	value = strings.TrimPrefix(value, "urn:btih:")
	return value
}

// BuildMagnet renders the bare magnet link for a content hash. Display names
// and tracker hints are omitted: the debrid cache resolves by hash alone.
func BuildMagnet(infoHash string) string {
	hash := NormalizeInfoHash(infoHash)
	if hash == "" {
		return ""
	}
	return "magnet:?xt=urn:btih:" + hash
}

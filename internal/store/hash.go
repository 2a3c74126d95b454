package store

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the hex xxhash64 of a file's bytes. It is the change
// detection key for incremental indexing.
func ContentHash(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// FingerprintHash hashes a set of name/value pairs in key order. It is used
// to detect when the analysis configuration behind a database changes.
func FingerprintHash(parts map[string]string) string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		d.WriteString(k)
		d.WriteString("=")
		d.WriteString(parts[k])
		d.WriteString("\n")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

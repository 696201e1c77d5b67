// Package output bounds command output with head/tail preservation.
package output

import "fmt"

const (
	DefaultMaxBytes = 65536

	headShare = 0.75
)

// Truncate caps data at maxBytes, keeping the head and tail of the original
// and inserting a marker with the total size in between. maxBytes <= 0
// disables truncation. The second return reports whether anything was cut.
func Truncate(data string, maxBytes int) (string, bool) {
	if maxBytes <= 0 {
		return data, false
	}
	raw := []byte(data)
	total := len(raw)
	if total <= maxBytes {
		return data, false
	}

	marker := fmt.Sprintf("\n... [output truncated: %d bytes total] ...\n", total)
	sep := []byte(marker)
	if maxBytes <= len(sep) {
		return string(sep[:maxBytes]), true
	}

	budget := maxBytes - len(sep)
	headSize := int(float64(budget) * headShare)
	tailSize := budget - headSize

	combined := make([]byte, 0, maxBytes)
	combined = append(combined, raw[:headSize]...)
	combined = append(combined, sep...)
	if tailSize > 0 {
		combined = append(combined, raw[total-tailSize:]...)
	}
	return string(combined), true
}

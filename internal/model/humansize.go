package model

import "fmt"

var sizeSuffixes = []string{"K", "M", "G", "T", "P", "E", "Z", "Y"}

// HumanReadableSize formats a byte count the way
// original_source/rnr/utils.py:human_readable_size does: no decimals under
// 1024 bytes, otherwise a suffix chosen so the mantissa never exceeds four
// significant digits.
func HumanReadableSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%dB", size)
	}

	f := float64(size)

	suffix := sizeSuffixes[len(sizeSuffixes)-1]

	for _, s := range sizeSuffixes {
		f /= 1024

		if f < 1024 {
			suffix = s

			break
		}
	}

	precision := 4 - len(fmt.Sprintf("%d", int64(f)))
	if precision < 0 {
		precision = 0
	}

	return fmt.Sprintf("%.*f%s", precision, f, suffix)
}

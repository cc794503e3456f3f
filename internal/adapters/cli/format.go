package cli

import "fmt"

// HumanSize renders a byte count in KB below one megabyte and in MB above,
// with two decimals.
func HumanSize(n int64) string {
	kb := float64(n) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.2f KB", kb)
	}
	return fmt.Sprintf("%.2f MB", kb/1024)
}

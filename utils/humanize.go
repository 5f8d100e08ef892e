package utils

import "fmt"

// HumanSize renders a byte count the way the file list displays it.
func HumanSize(size int64) string {
	switch {
	case size < 1<<10:
		return fmt.Sprintf("%d B", size)
	case size < 1<<20:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	case size < 1<<30:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/(1<<30))
	}
}

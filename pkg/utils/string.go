package utils

// Truncate shortens s to maxLen runes of content, appending an ellipsis when
// anything was cut. Used to keep large record diffs readable in debug logs.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

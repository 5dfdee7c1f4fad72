package billing

import "strings"

// pad right-pads s with ASCII spaces to width, truncating from the right
// when s is already longer. Every fixed-width sub-field goes through this,
// so a formatting failure degrades to an all-space block of the correct
// width rather than a short result.
func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

package chat

import "strings"

// ThreadID builds the deterministic composite id for a buyer/seller pair.
// Symmetric: ThreadID(a, b) == ThreadID(b, a).
func ThreadID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// threadHas reports whether userID is exactly one of the two halves of
// threadID. A plain substring check would also match ids that merely contain
// the user id as a prefix.
func threadHas(threadID, userID string) bool {
	parts := strings.SplitN(threadID, "_", 2)
	return len(parts) == 2 && (parts[0] == userID || parts[1] == userID)
}

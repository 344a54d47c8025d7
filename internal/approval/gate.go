package approval

import (
	"net/http"
	"slices"
)

// IsClientApproved reports whether the browser behind r has already
// approved clientID. It is the only path that may skip the approval dialog.
func IsClientApproved(r *http.Request, clientID string, key SigningKey) bool {
	if clientID == "" {
		return false
	}
	return slices.Contains(ApprovedClientsFromRequest(r, key), clientID)
}

package game

import "github.com/codingSofie/partykit/internal/models"

// shouldBeHost decides whether a joining player takes the host seat: yes when
// the room is empty, and yes when no current player holds the flag (recovery
// after an inconsistent state).
func shouldBeHost(existing []*models.Player) bool {
	if len(existing) == 0 {
		return true
	}
	for _, p := range existing {
		if p.IsHost {
			return false
		}
	}
	return true
}

// nextHost picks the successor after a host leaves: the remaining player with
// the earliest join time. Callers pass the list already ordered by joined_at.
func nextHost(remaining []*models.Player) *models.Player {
	if len(remaining) == 0 {
		return nil
	}
	return remaining[0]
}

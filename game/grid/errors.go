package grid

import (
	"errors"
	"fmt"
)

// ErrPlacementRejected matches every *PlacementError via errors.Is.
var ErrPlacementRejected = errors.New("placement rejected")

// Reason says why a placement was rejected.
type Reason string

const (
	ReasonOutOfBounds    Reason = "out_of_bounds"
	ReasonOccupied       Reason = "occupied"
	ReasonReserved       Reason = "spawn_or_exit"
	ReasonBlocksPath     Reason = "blocks_path"
	ReasonCreatureOnCell Reason = "creature_on_cell"
)

// PlacementError is returned for every rejected placement request.
type PlacementError struct {
	Cell   Cell
	Reason Reason
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("placement at %s rejected: %s", e.Cell, e.Reason)
}

func (e *PlacementError) Is(target error) bool { return target == ErrPlacementRejected }

// RejectionReason extracts the reason from err, or "" if err is not a
// placement rejection.
func RejectionReason(err error) Reason {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

package dragdrop

import "errors"

var (
	ErrDragInFlight   = errors.New("a card move is still being saved")
	ErrNoActiveDrag   = errors.New("no card is being dragged")
	ErrCardNotFound   = errors.New("card not found on board")
	ErrColumnNotFound = errors.New("column not found on board")
	ErrNoCollaborator = errors.New("card collaborator is not configured")
	ErrNoProvider     = errors.New("snapshot provider is not configured")
)

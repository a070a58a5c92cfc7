package services

import (
	"errors"

	"github.com/fitaccessng/qring-backend/models"
)

var (
	ErrNoDoors           = errors.New("no doors configured for QR")
	ErrSelectionRequired = errors.New("door selection required")
)

// SelectDoor picks the door of record for a visitor request. Pure
// function: same inputs, same output.
//
// direct mode always takes the first listed door, ignoring any visitor
// choice. selector mode requires an explicit choice that is a member of
// the list; absence is an error, never a silent default. Unknown modes
// fall back to the first door.
func SelectDoor(doors []string, mode string, requestedDoor string) (string, error) {
	if len(doors) == 0 {
		return "", ErrNoDoors
	}

	if mode == models.QRModeDirect {
		return doors[0], nil
	}

	if requestedDoor != "" {
		for _, d := range doors {
			if d == requestedDoor {
				return requestedDoor, nil
			}
		}
	}

	if mode == models.QRModeSelector {
		return "", ErrSelectionRequired
	}

	return doors[0], nil
}

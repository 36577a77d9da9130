package domain

import "fmt"

// ArmType identifies one of the two parallel work tracks
type ArmType string

const (
	ArmIBM ArmType = "ibm"
	ArmCS  ArmType = "cs"
)

// Arms lists both tracks in canonical order
var Arms = []ArmType{ArmIBM, ArmCS}

// ParseArm validates a track identifier string
func ParseArm(s string) (ArmType, error) {
	switch ArmType(s) {
	case ArmIBM, ArmCS:
		return ArmType(s), nil
	}
	return "", fmt.Errorf("unknown arm %q (expected ibm or cs)", s)
}

// StatusType is the activity state derived from a theater's log history
type StatusType string

const (
	StatusActive  StatusType = "active"
	StatusWarm    StatusType = "warm"
	StatusIdle    StatusType = "idle"
	StatusBlocked StatusType = "blocked"
)

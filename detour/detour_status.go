package detour

import (
	"errors"
	"fmt"
)

type DtStatus uint32

const (
	// High level status.
	DT_FAILURE     DtStatus = 1 << 31 // Operation failed.
	DT_SUCCESS     DtStatus = 1 << 30 // Operation succeed.
	DT_IN_PROGRESS DtStatus = 1 << 29 // Operation still in progress.

	// Detail information for status.
	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0 // Input data is not recognized.
	DT_WRONG_VERSION      DtStatus = 1 << 1 // Input data is in wrong version.
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2 // Operation ran out of memory.
	DT_INVALID_PARAM      DtStatus = 1 << 3 // An input parameter was invalid.
	DT_ALREADY_OCCUPIED   DtStatus = 1 << 7 // A tile has already been assigned to the given x,y coordinate
)

var (
	ErrWrongMagic      = errors.New("detour: wrong magic")
	ErrWrongVersion    = errors.New("detour: wrong version")
	ErrInvalidParam    = errors.New("detour: invalid param")
	ErrAlreadyOccupied = errors.New("detour: tile already occupied")
	ErrCapacity        = errors.New("detour: tile capacity exhausted")
)

// Returns true of status is success.
func (status DtStatus) DtStatusSucceed() bool {
	return (status & DT_SUCCESS) != 0
}

// Returns true of status is failure.
func (status DtStatus) DtStatusFailed() bool {
	return (status & DT_FAILURE) != 0
}

// Returns true if specific detail is set.
func (status DtStatus) DtStatusDetail(detail DtStatus) bool {
	return (status & detail) != 0
}

// CapacityError reports that every tile slot of the navmesh is in use.
type CapacityError struct {
	MaxTiles int32
	Needed   int
	Free     int
}

func (e *CapacityError) Error() string {
	if e.Needed > 0 {
		return fmt.Sprintf("detour: need %d tiles, %d of %d free", e.Needed, e.Free, e.MaxTiles)
	}
	return fmt.Sprintf("detour: all %d tiles in use", e.MaxTiles)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// Err converts a failed status into an error. Success yields nil.
func (status DtStatus) Err() error {
	if !status.DtStatusFailed() {
		return nil
	}
	switch {
	case status.DtStatusDetail(DT_WRONG_MAGIC):
		return ErrWrongMagic
	case status.DtStatusDetail(DT_WRONG_VERSION):
		return ErrWrongVersion
	case status.DtStatusDetail(DT_ALREADY_OCCUPIED):
		return ErrAlreadyOccupied
	case status.DtStatusDetail(DT_OUT_OF_MEMORY):
		return ErrCapacity
	default:
		return ErrInvalidParam
	}
}

package appointment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

const EventAppointmentBooked = "APPOINTMENT_BOOKED"

var (
	// ErrSlotUnavailable covers both a missing slot and one that is already booked.
	// The caller has to pick another slot; retrying the same request cannot succeed.
	ErrSlotUnavailable = apperr.New(apperr.KindSlotUnavailable, "slot does not exist or is already booked")
	ErrSlotNotFound    = apperr.New(apperr.KindNotFound, "slot not found")
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// BookSlot finds the slot only if it is unbooked, marks it booked and
	// inserts the appointment, all in one atomic unit. It returns
	// ErrSlotUnavailable when no unbooked slot matches.
	BookSlot(ctx context.Context, slotID, patientID, bookedBy uuid.UUID) (*Appointment, error)

	CreateSlot(ctx context.Context, slot *AppointmentSlot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error)
	ListOpenSlots(ctx context.Context, filter SlotFilter) ([]AppointmentSlot, error)
}

func bookedEventPayload(slotID, patientID, bookedBy uuid.UUID) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
		"booked_by":  bookedBy.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal booking event: %w", err)
	}
	return payload, nil
}

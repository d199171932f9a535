package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentSlot is a block of clinician time. IsBooked flips to true exactly
// once, together with the creation of the slot's Appointment.
type AppointmentSlot struct {
	ID          uuid.UUID
	ClinicianID uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	IsBooked    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	BookedBy  uuid.UUID
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// SlotFilter narrows ListOpenSlots. Zero values do not filter.
type SlotFilter struct {
	ClinicianID uuid.UUID
	From        time.Time
	To          time.Time
	Limit       int
}

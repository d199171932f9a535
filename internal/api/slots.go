package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/appointment"
	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

func createSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		slot, err := svc.CreateSlot(r.Context(), uuid.MustParse(req.ClinicianID), req.StartTime.UTC(), req.EndTime.UTC())
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newSlotResponse(*slot))
	}
}

func listOpenSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var filter appointment.SlotFilter
		if raw := q.Get("clinician_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeAppError(w, r, apperr.Validation("clinician_id must be a valid UUID"))
				return
			}
			filter.ClinicianID = id
		}

		var err error
		if filter.From, err = parseTime("from", q.Get("from"), false); err != nil {
			writeAppError(w, r, err)
			return
		}
		if filter.To, err = parseTime("to", q.Get("to"), true); err != nil {
			writeAppError(w, r, err)
			return
		}

		slots, err := svc.ListOpenSlots(r.Context(), filter)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, newSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// bookSlotHandler books the slot for the patient in the body on behalf of the
// user in the X-User-ID header. A lost race is 409 and the client should
// re-list open slots.
func bookSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		userID, err := requestingUser(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		var req BookSlotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		appt, err := svc.BookSlot(r.Context(), slotID, uuid.MustParse(req.PatientID), userID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
	}
}

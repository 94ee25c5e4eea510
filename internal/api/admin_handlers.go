package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

func getScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		days, err := svc.GetSchedule(r.Context(), actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]ScheduleDayDTO, 0, len(days))
		for _, d := range days {
			out = append(out, toScheduleDayDTO(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func replaceScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		var dtos []ScheduleDayDTO
		if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		days := make([]booking.ScheduleDay, 0, len(dtos))
		for _, dto := range dtos {
			day, err := fromScheduleDayDTO(dto)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
				return
			}
			days = append(days, day)
		}

		if err := svc.ReplaceSchedule(r.Context(), actor, days); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listVacationsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		vacations, err := svc.ListVacations(r.Context(), actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]VacationResponse, 0, len(vacations))
		for _, v := range vacations {
			out = append(out, toVacationResponse(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createVacationHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		var req VacationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "end_date must be YYYY-MM-DD")
			return
		}

		created, err := svc.CreateVacation(r.Context(), actor, booking.Vacation{
			StartDate: start,
			EndDate:   end,
			Reason:    req.Reason,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVacationResponse(*created))
	}
}

func deleteVacationHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vacation_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteVacation(r.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSettingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		settings, err := svc.GetSettings(r.Context(), actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SettingsDTO{
			SlotDurationMinutes: settings.SlotDurationMinutes,
			MaxPatientsPerSlot:  settings.MaxPatientsPerSlot,
			AdvanceBookingDays:  settings.AdvanceBookingDays,
			CancellationHours:   settings.CancellationHours,
		})
	}
}

func updateSettingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		var req SettingsDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		err := svc.UpdateSettings(r.Context(), actor, booking.ClinicSettings{
			SlotDurationMinutes: req.SlotDurationMinutes,
			MaxPatientsPerSlot:  req.MaxPatientsPerSlot,
			AdvanceBookingDays:  req.AdvanceBookingDays,
			CancellationHours:   req.CancellationHours,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toScheduleDayDTO(d booking.ScheduleDay) ScheduleDayDTO {
	dto := ScheduleDayDTO{
		Weekday: int(d.Weekday),
		Start:   d.Start.String(),
		End:     d.End.String(),
		Active:  d.Active,
	}
	if d.BreakStart != nil {
		bs := d.BreakStart.String()
		dto.BreakStart = &bs
	}
	if d.BreakEnd != nil {
		be := d.BreakEnd.String()
		dto.BreakEnd = &be
	}
	return dto
}

func fromScheduleDayDTO(dto ScheduleDayDTO) (booking.ScheduleDay, error) {
	start, err := booking.ParseTimeOfDay(dto.Start)
	if err != nil {
		return booking.ScheduleDay{}, err
	}
	end, err := booking.ParseTimeOfDay(dto.End)
	if err != nil {
		return booking.ScheduleDay{}, err
	}

	day := booking.ScheduleDay{
		Weekday: time.Weekday(dto.Weekday),
		Start:   start,
		End:     end,
		Active:  dto.Active,
	}
	if dto.BreakStart != nil {
		bs, err := booking.ParseTimeOfDay(*dto.BreakStart)
		if err != nil {
			return booking.ScheduleDay{}, err
		}
		day.BreakStart = &bs
	}
	if dto.BreakEnd != nil {
		be, err := booking.ParseTimeOfDay(*dto.BreakEnd)
		if err != nil {
			return booking.ScheduleDay{}, err
		}
		day.BreakEnd = &be
	}
	return day, nil
}

func toVacationResponse(v booking.Vacation) VacationResponse {
	return VacationResponse{
		ID:        v.ID,
		StartDate: v.StartDate.Format("2006-01-02"),
		EndDate:   v.EndDate.Format("2006-01-02"),
		Reason:    v.Reason,
	}
}

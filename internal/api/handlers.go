package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

type AppointmentService interface {
	Create(ctx context.Context, actor directory.Actor, req appointment.CreateRequest) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, actor directory.Actor, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	Cancel(ctx context.Context, actor directory.Actor, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, actor directory.Actor, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, actor directory.Actor, f appointment.Filter) (*appointment.Page, error)
	CheckAvailability(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
}

type DirectoryService interface {
	Authenticator
	ListDoctors(ctx context.Context, actor directory.Actor, f directory.DoctorFilter) (*directory.DoctorPage, error)
	Schedule(ctx context.Context, doctorID uuid.UUID) (*directory.Schedule, error)
	UpdateSchedule(ctx context.Context, actor directory.Actor, doctorID uuid.UUID, upd directory.ScheduleUpdate) (*directory.Schedule, error)
	SetDoctorActive(ctx context.Context, actor directory.Actor, doctorID uuid.UUID, active bool) (*directory.Doctor, error)
}

type Handler struct {
	appointments AppointmentService
	directory    DirectoryService
	log          zerolog.Logger
}

func NewHandler(appointments AppointmentService, dir DirectoryService, log zerolog.Logger) *Handler {
	return &Handler{appointments: appointments, directory: dir, log: log}
}

// Appointments

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", apperr.KindValidation, "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", apperr.KindValidation, "doctorId must be a valid UUID")
		return
	}

	at, err := time.Parse(time.RFC3339, req.ScheduledInstant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduled_instant", apperr.KindValidation, "scheduledInstant must be RFC 3339 with a UTC offset")
		return
	}

	appt, err := h.appointments.Create(r.Context(), actor, appointment.CreateRequest{
		DoctorID:    doctorID,
		ScheduledAt: at,
		Notes:       req.Notes,
		Symptoms:    req.Symptoms,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	f, err := parseFilter(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	page, err := h.appointments.List(r.Context(), actor, f)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	resp := ListAppointmentsResponse{
		Appointments: make([]AppointmentResponse, 0, len(page.Appointments)),
		Total:        page.Total,
		Skip:         page.Skip,
		Limit:        page.Limit,
	}
	for i := range page.Appointments {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(&page.Appointments[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.appointments.Get(r.Context(), actor, id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", apperr.KindValidation, "could not parse JSON")
		return
	}

	appt, err := h.appointments.UpdateStatus(r.Context(), actor, id, appointment.Status(strings.ToLower(req.Status)))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.appointments.Cancel(r.Context(), actor, id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// Doctors

func (h *Handler) doctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("appointmentDatetime"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_datetime", apperr.KindValidation, "appointmentDatetime must be RFC 3339 with a UTC offset")
		return
	}

	available, err := h.appointments.CheckAvailability(r.Context(), doctorID, at)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:            doctorID,
		AppointmentDatetime: at,
		IsAvailable:         available,
	})
}

func (h *Handler) listDoctors(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	q := r.URL.Query()

	f := directory.DoctorFilter{
		Search:          q.Get("search"),
		Specialization:  q.Get("specialization"),
		IncludeInactive: q.Get("includeInactive") == "true",
	}
	var err error
	if f.Skip, err = intParam(q.Get("skip"), 0); err != nil {
		h.writeAppError(w, r, errInvalidQueryParam.Withf("skip must be an integer"))
		return
	}
	if f.Limit, err = intParam(q.Get("limit"), directory.DefaultDoctorLimit); err != nil {
		h.writeAppError(w, r, errInvalidQueryParam.Withf("limit must be an integer"))
		return
	}

	page, err := h.directory.ListDoctors(r.Context(), actor, f)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	resp := ListDoctorsResponse{
		Doctors: make([]DoctorResponse, 0, len(page.Doctors)),
		Total:   page.Total,
		Skip:    page.Skip,
		Limit:   page.Limit,
	}
	for i := range page.Doctors {
		resp.Doctors = append(resp.Doctors, toDoctorResponse(&page.Doctors[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	sched, err := h.directory.Schedule(r.Context(), doctorID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(sched))
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	doctorID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", apperr.KindValidation, "could not parse JSON")
		return
	}

	sched, err := h.directory.UpdateSchedule(r.Context(), actor, doctorID, directory.ScheduleUpdate{
		Timeslots:       req.Timeslots,
		ConsultationFee: req.ConsultationFee,
		Specialization:  req.Specialization,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(sched))
}

func (h *Handler) setDoctorStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	doctorID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var req DoctorStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", apperr.KindValidation, "isActive is required")
		return
	}

	doc, err := h.directory.SetDoctorActive(r.Context(), actor, doctorID, *req.IsActive)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(doc))
}

// Helpers

var errInvalidQueryParam = apperr.New(apperr.KindValidation, "invalid_query_parameter", "invalid query parameter")

func parseFilter(r *http.Request) (appointment.Filter, error) {
	q := r.URL.Query()
	var f appointment.Filter

	if v := q.Get("status"); v != "" {
		s := appointment.Status(strings.ToLower(v))
		f.Status = &s
	}
	if v := q.Get("doctorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errInvalidQueryParam.Withf("doctorId must be a valid UUID")
		}
		f.DoctorID = &id
	}
	if v := q.Get("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errInvalidQueryParam.Withf("patientId must be a valid UUID")
		}
		f.PatientID = &id
	}
	if v := q.Get("startDate"); v != "" {
		t, err := parseDateParam(v, false)
		if err != nil {
			return f, errInvalidQueryParam.Withf("startDate must be RFC 3339 or YYYY-MM-DD")
		}
		f.Start = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDateParam(v, true)
		if err != nil {
			return f, errInvalidQueryParam.Withf("endDate must be RFC 3339 or YYYY-MM-DD")
		}
		f.End = &t
	}
	f.Search = q.Get("search")

	var err error
	if f.Skip, err = intParam(q.Get("skip"), 0); err != nil {
		return f, errInvalidQueryParam.Withf("skip must be an integer")
	}
	if f.Limit, err = intParam(q.Get("limit"), appointment.DefaultLimit); err != nil {
		return f, errInvalidQueryParam.Withf("limit must be an integer")
	}

	return f, nil
}

// parseDateParam accepts a full timestamp or a bare date. A bare end date
// covers the whole day.
func parseDateParam(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d, nil
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, apperr.KindValidation, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperr.As(err); ok {
		writeError(w, statusForKind(appErr.Kind), appErr.Code, appErr.Kind, appErr.Message)
		return
	}

	h.log.Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, kind apperr.Kind, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Kind: string(kind), Details: details})
}

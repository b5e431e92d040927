package controllers

import (
	"net/http"

	"github.com/dcode-github/property_marketplace/booking"
	"github.com/dcode-github/property_marketplace/models"
)

func writeResult(w http.ResponseWriter, status int, message string, res *booking.Result) {
	writeJSON(w, status, models.APIResponse{
		Success:  true,
		Message:  message,
		Data:     res.Appointment,
		Warnings: res.Warnings,
	})
}

func (a *API) ScheduleAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in booking.ScheduleInput
		if err := decodeBody(r, &in); err != nil {
			a.writeError(w, r, err)
			return
		}
		res, err := a.Bookings.Schedule(r.Context(), mustCaller(r), in)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusCreated, "Viewing requested", res)
	}
}

func (a *API) ListAppointments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := a.Bookings.ListForUser(r.Context(), mustCaller(r))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: appts})
	}
}

func (a *API) GetAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		appt, err := a.Bookings.Get(r.Context(), mustCaller(r), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: appt})
	}
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (a *API) UpdateAppointmentStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		var req statusRequest
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		res, err := a.Bookings.UpdateStatus(r.Context(), mustCaller(r), id, req.Status, req.Reason)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusOK, "Appointment "+string(res.Appointment.Status), res)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (a *API) CancelAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		// The body is optional; an empty one means the default reason.
		var req cancelRequest
		if err := decodeBody(r, &req); err != nil && err != errEmptyBody {
			a.writeError(w, r, err)
			return
		}
		res, err := a.Bookings.Cancel(r.Context(), mustCaller(r), id, req.Reason)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusOK, "Appointment cancelled", res)
	}
}

type meetingLinkRequest struct {
	MeetingLink string `json:"meetingLink"`
}

func (a *API) UpdateMeetingLink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		var req meetingLinkRequest
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		res, err := a.Bookings.UpdateMeetingLink(r.Context(), mustCaller(r), id, req.MeetingLink)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusOK, "Meeting link updated", res)
	}
}

func (a *API) SubmitFeedback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		var in booking.FeedbackInput
		if err := decodeBody(r, &in); err != nil {
			a.writeError(w, r, err)
			return
		}
		res, err := a.Bookings.SubmitFeedback(r.Context(), mustCaller(r), id, in)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusOK, "Thanks for your feedback", res)
	}
}

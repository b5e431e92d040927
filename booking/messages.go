package booking

import (
	"fmt"

	"github.com/dcode-github/property_marketplace/models"
)

type message struct {
	subject string
	body    string
}

func requestedForRequester(p *models.Property, a *models.Appointment) message {
	return message{
		subject: "Viewing request sent",
		body: fmt.Sprintf("Your viewing request for %q in %s on %s at %s was sent to the owner. "+
			"You will be notified once it is confirmed.", p.Title, p.Location, a.Date, a.Time),
	}
}

func requestedForOwner(p *models.Property, a *models.Appointment) message {
	body := fmt.Sprintf("%s asked to view %q on %s at %s.", a.RequesterEmail, p.Title, a.Date, a.Time)
	if a.Notes != "" {
		body += "\n\nNotes: " + a.Notes
	}
	return message{subject: "New viewing request", body: body}
}

func statusChanged(a *models.Appointment) message {
	body := fmt.Sprintf("Your viewing on %s at %s is now %s.", a.Date, a.Time, a.Status)
	if a.Status == models.AppointmentCancelled && a.CancellationReason != "" {
		body += "\n\nReason: " + a.CancellationReason
	}
	return message{subject: fmt.Sprintf("Viewing %s", a.Status), body: body}
}

func cancelledByRequester(a *models.Appointment) message {
	return message{
		subject: "Viewing cancelled",
		body: fmt.Sprintf("The viewing on %s at %s was cancelled by %s.\n\nReason: %s",
			a.Date, a.Time, a.RequesterEmail, a.CancellationReason),
	}
}

func meetingLinkUpdated(a *models.Appointment) message {
	return message{
		subject: "Meeting link for your viewing",
		body:    fmt.Sprintf("Join your viewing on %s at %s here: %s", a.Date, a.Time, a.MeetingLink),
	}
}

func feedbackReceived(a *models.Appointment) message {
	body := fmt.Sprintf("%s rated the viewing on %s %d/5.", a.RequesterEmail, a.Date, a.Feedback.Rating)
	if a.Feedback.Comment != "" {
		body += "\n\n" + a.Feedback.Comment
	}
	return message{subject: "New viewing feedback", body: body}
}

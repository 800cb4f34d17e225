package core

import "context"

// workflow event topics
const (
	TopicApplicationSubmitted = "cts.application.submitted"
	TopicApplicationStatus    = "cts.application.status_changed"
	TopicSubjectReviewed      = "cts.subject.reviewed"
	TopicSubjectSentToSME     = "cts.subject.sent_to_sme"
	TopicAppointmentCreated   = "cts.appointment.created"
	TopicAppointmentUpdated   = "cts.appointment.updated"
	TopicTemplate3Created     = "cts.template3.created"
)

// EventPublisher publishes workflow events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Close() error
}

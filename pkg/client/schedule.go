package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Mutation endpoints carry explicit class-name/version tags in their form
// bodies; the portal's backend dispatches on them.
const (
	scheduleEventClass   = "ScheduleEventRequest"
	unscheduleEventClass = "UnscheduleEventRequest"
	mutationClassVersion = "1.0"

	schedulePath   = "/events/schedule"
	unschedulePath = "/events/unschedule"
)

// ScheduleRequest describes an assignment to place on the portal calendar.
type ScheduleRequest struct {
	EmployeeID string
	EventID    string
	Start      time.Time
	End        time.Time
}

// ScheduleAssignment schedules an assignment on the portal. A failure after
// the executor's re-login retry surfaces as *SessionError; the caller owns
// user-visible messaging.
func (c *Client) ScheduleAssignment(ctx context.Context, req ScheduleRequest) error {
	form := url.Values{}
	form.Set("className", scheduleEventClass)
	form.Set("classVersion", mutationClassVersion)
	form.Set("employeeID", req.EmployeeID)
	form.Set("eventID", req.EventID)
	form.Set("startTime", req.Start.Format(isoOffsetLayout))
	form.Set("endTime", req.End.Format(isoOffsetLayout))

	_, err := c.Execute(ctx, http.MethodPost, schedulePath, RequestOptions{Form: form})
	return err
}

// UnscheduleAssignment removes a scheduled assignment by its schedule event
// identifier.
func (c *Client) UnscheduleAssignment(ctx context.Context, scheduleEventID string) error {
	form := url.Values{}
	form.Set("className", unscheduleEventClass)
	form.Set("classVersion", mutationClassVersion)
	form.Set("scheduleEventID", scheduleEventID)

	_, err := c.Execute(ctx, http.MethodPost, unschedulePath, RequestOptions{Form: form})
	return err
}

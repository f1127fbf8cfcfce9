package ews

import (
	"context"
	"strconv"
	"time"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// GetFreeBusyStart sends a GetUserAvailabilityRequest whose body is written
// by request, usually FreeBusyRequest. Results follow the order of the
// mailboxes in the request.
func (c *Connection) GetFreeBusyStart(ctx context.Context, priority Priority, request RequestWriter) *Pending[[]*FreeBusy] {
	msg := c.newMessage("GetUserAvailabilityRequest", "", "")
	if request != nil {
		request(msg)
	}
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *[]*FreeBusy) error {
		fb, err := parseFreeBusy(p)
		if err != nil {
			return err
		}
		*r = append(*r, fb)
		return nil
	})
}

// GetFreeBusy is the blocking form of GetFreeBusyStart.
func (c *Connection) GetFreeBusy(ctx context.Context, priority Priority, request RequestWriter) ([]*FreeBusy, error) {
	return c.GetFreeBusyStart(ctx, priority, request).Finish()
}

// FreeBusyRequest writes a UTC availability request for emails over
// [start, end) with merged intervals of interval minutes.
func FreeBusyRequest(start, end time.Time, emails []string, interval int) RequestWriter {
	if interval <= 0 {
		interval = 60
	}
	return func(msg *soap.Message) {
		msg.StartElement("TimeZone", "")
		msg.WriteStringParameter("Bias", "", "0")
		for _, name := range []string{"StandardTime", "DaylightTime"} {
			msg.StartElement(name, "")
			msg.WriteStringParameter("Bias", "", "0")
			msg.WriteStringParameter("Time", "", "00:00:00")
			msg.WriteStringParameter("DayOrder", "", "0")
			msg.WriteStringParameter("Month", "", "0")
			msg.WriteStringParameter("DayOfWeek", "", "Sunday")
			msg.EndElement()
		}
		msg.EndElement()

		msg.StartElement("MailboxDataArray", soap.PrefixMessages)
		for _, email := range emails {
			msg.StartElement("MailboxData", "")
			msg.StartElement("Email", "")
			msg.WriteStringParameter("Address", "", email)
			msg.EndElement()
			msg.WriteStringParameter("AttendeeType", "", "Required")
			msg.WriteStringParameter("ExcludeConflicts", "", "false")
			msg.EndElement()
		}
		msg.EndElement()

		msg.StartElement("FreeBusyViewOptions", "")
		msg.StartElement("TimeWindow", "")
		msg.WriteStringParameter("StartTime", "", formatTime(start))
		msg.WriteStringParameter("EndTime", "", formatTime(end))
		msg.EndElement()
		msg.WriteStringParameter("MergedFreeBusyIntervalInMinutes", "", strconv.Itoa(interval))
		msg.WriteStringParameter("RequestedView", "", "DetailedMerged")
		msg.EndElement()
	}
}

func (c *Connection) oofMailbox(operation string) (string, *Error) {
	email := c.Email()
	if email == "" {
		return "", newError(operation, KindMissingEmailAddress, "no mailbox address known")
	}
	return email, nil
}

// GetUserOofSettingsStart reads the automatic-reply settings of the
// connection's mailbox.
func (c *Connection) GetUserOofSettingsStart(ctx context.Context, priority Priority) *Pending[OOFSettings] {
	const operation = "GetUserOofSettingsRequest"
	email, e := c.oofMailbox(operation)
	if e != nil {
		return failed[OOFSettings](operation, e)
	}

	msg := c.newMessage(operation, "", "")
	msg.StartElement("Mailbox", "")
	msg.WriteStringParameter("Address", "", email)
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *OOFSettings) error {
		s, err := parseOOFSettings(p)
		if err != nil {
			return err
		}
		*r = *s
		return nil
	})
}

// GetUserOofSettings is the blocking form of GetUserOofSettingsStart.
func (c *Connection) GetUserOofSettings(ctx context.Context, priority Priority) (OOFSettings, error) {
	return c.GetUserOofSettingsStart(ctx, priority).Finish()
}

// SetUserOofSettingsStart replaces the automatic-reply settings of the
// connection's mailbox.
func (c *Connection) SetUserOofSettingsStart(ctx context.Context, priority Priority, settings OOFSettings) *Pending[struct{}] {
	const operation = "SetUserOofSettingsRequest"
	email, e := c.oofMailbox(operation)
	if e != nil {
		return failed[struct{}](operation, e)
	}

	msg := c.newMessage(operation, "", "")
	msg.StartElement("Mailbox", "")
	msg.WriteStringParameter("Address", "", email)
	msg.EndElement()

	msg.StartElement("UserOofSettings", "")
	msg.WriteStringParameter("OofState", "", settings.State)
	msg.WriteStringParameter("ExternalAudience", "", settings.ExternalAudience)
	msg.StartElement("Duration", "")
	msg.WriteStringParameter("StartTime", "", formatTime(settings.Start))
	msg.WriteStringParameter("EndTime", "", formatTime(settings.End))
	msg.EndElement()
	msg.StartElement("InternalReply", "")
	msg.WriteStringParameter("Message", "", settings.InternalReply)
	msg.EndElement()
	msg.StartElement("ExternalReply", "")
	msg.WriteStringParameter("Message", "", settings.ExternalReply)
	msg.EndElement()
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// SetUserOofSettings is the blocking form of SetUserOofSettingsStart.
func (c *Connection) SetUserOofSettings(ctx context.Context, priority Priority, settings OOFSettings) error {
	_, err := c.SetUserOofSettingsStart(ctx, priority, settings).Finish()
	return err
}

package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/db"
	"github.com/surveyhos/surveyhos/internal/platform/notification"
	"github.com/surveyhos/surveyhos/internal/platform/websocket"
)

// StaffDirectory resolves who hears about a low score.
type StaffDirectory interface {
	ManagersOfPoint(ctx context.Context, pointID uuid.UUID) ([]*staff.Staff, error)
	Admins(ctx context.Context) ([]*staff.Staff, error)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPublicBaseURL sets the origin prepended to links in pushes and email.
func WithPublicBaseURL(base string) DispatcherOption {
	return func(d *Dispatcher) { d.baseURL = strings.TrimRight(base, "/") }
}

// WithAdminBroadcast sets the LINE id that receives one message per alert.
func WithAdminBroadcast(recipientID string) DispatcherOption {
	return func(d *Dispatcher) { d.broadcastID = recipientID }
}

// WithLiveFeed pushes each created notification to the recipient's open
// back-office sessions.
func WithLiveFeed(feed websocket.EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.feed = feed }
}

// Dispatcher fans a low-score alert out to the in-app inbox, LINE and email.
type Dispatcher struct {
	notifications NotificationRepository
	directory     StaffDirectory
	push          notification.PushSender
	email         notification.EmailSender
	feed          websocket.EventPublisher
	logger        zerolog.Logger
	baseURL       string
	broadcastID   string
}

func NewDispatcher(repo NotificationRepository, directory StaffDirectory, push notification.PushSender, email notification.EmailSender, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifications: repo,
		directory:     directory,
		push:          push,
		email:         email,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Report counts what a dispatch achieved. Failures are counted, never returned.
type Report struct {
	Recipients    int  `json:"recipients"`
	Notifications int  `json:"notifications"`
	Pushes        int  `json:"pushes"`
	PushFailures  int  `json:"push_failures"`
	Broadcast     bool `json:"broadcast"`
	Emailed       int  `json:"emailed"`
}

type recipient struct {
	*staff.Staff
	admin bool
}

// alert is the rendered content shared by every channel.
type alert struct {
	title        string
	message      string
	adminLink    string
	managerLink  string
	pointName    string
	responseID   uuid.UUID
	avgFormatted string
}

// Dispatch notifies every manager of the response's service point and every
// administrator. Each recipient gets one in-app notification and, when a LINE
// id is on file, one push. One broadcast goes to the admin channel and one
// email to the batch of manager addresses.
func (d *Dispatcher) Dispatch(ctx context.Context, r *response.Response, dec Decision) Report {
	var rep Report
	a := d.render(r, dec)
	log := d.logger.With().Str("response_id", r.ID.String()).Logger()

	recipients := d.recipients(ctx, r, log)
	rep.Recipients = len(recipients)

	var managerEmails []string
	seenEmail := map[string]bool{}
	for _, rc := range recipients {
		link := a.managerLink
		if rc.admin {
			link = a.adminLink
		}

		n := &Notification{
			RecipientID: rc.ID,
			ResponseID:  &a.responseID,
			Title:       a.title,
			Message:     a.message,
			Link:        link,
		}
		if err := d.notifications.Create(ctx, n); err != nil {
			log.Error().Err(err).Str("recipient_id", rc.ID.String()).Msg("create notification failed")
		} else {
			rep.Notifications++
			d.announce(ctx, n, log)
		}

		if rc.LineUserID != nil && *rc.LineUserID != "" {
			text := fmt.Sprintf("[Alert]\n%s\n%s\n\nReview: %s", a.title, a.message, d.absolute(link))
			if err := d.push.SendPush(ctx, *rc.LineUserID, text); err != nil {
				rep.PushFailures++
				d.logChannelError(log, "line", rc.ID.String(), err)
			} else {
				rep.Pushes++
			}
		}

		if !rc.admin && rc.Email != nil {
			addr := strings.TrimSpace(*rc.Email)
			if addr != "" && !seenEmail[strings.ToLower(addr)] {
				seenEmail[strings.ToLower(addr)] = true
				managerEmails = append(managerEmails, addr)
			}
		}
	}

	if d.broadcastID != "" {
		text := fmt.Sprintf("[Admin Alert]\nLow score at: %s\nScore: %s\n\nReview: %s",
			a.pointName, a.avgFormatted, d.absolute(a.adminLink))
		if err := d.push.SendPush(ctx, d.broadcastID, text); err != nil {
			d.logChannelError(log, "line_broadcast", d.broadcastID, err)
		} else {
			rep.Broadcast = true
		}
	} else {
		log.Debug().Msg("admin broadcast not configured")
	}

	if len(managerEmails) > 0 {
		body := fmt.Sprintf("%s\n\nReview: %s\n", a.message, d.absolute(a.managerLink))
		err := d.email.SendEmail(ctx, a.title, body, managerEmails)
		var refused *notification.RecipientsRefusedError
		switch {
		case err == nil:
			rep.Emailed = len(managerEmails)
		case errors.As(err, &refused) && refused.Partial():
			rep.Emailed = refused.Accepted
			log.Warn().Err(err).Str("channel", "email").Int("refused", len(refused.Refused)).
				Msg("alert email refused for some managers")
		default:
			d.logChannelError(log, "email", strings.Join(managerEmails, ","), err)
		}
	}

	log.Info().
		Int("recipients", rep.Recipients).
		Int("notifications", rep.Notifications).
		Int("pushes", rep.Pushes).
		Int("push_failures", rep.PushFailures).
		Bool("broadcast", rep.Broadcast).
		Int("emailed", rep.Emailed).
		Msg("low score alert dispatched")
	return rep
}

// recipients merges the point's managers with the administrators. A staff
// member in both sets is treated as an administrator.
func (d *Dispatcher) recipients(ctx context.Context, r *response.Response, log zerolog.Logger) []recipient {
	var out []recipient
	index := map[uuid.UUID]int{}

	admins, err := d.directory.Admins(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list administrators failed")
	}
	for _, s := range admins {
		if _, dup := index[s.ID]; dup {
			continue
		}
		index[s.ID] = len(out)
		out = append(out, recipient{Staff: s, admin: true})
	}

	if r.ServicePointID == nil {
		return out
	}
	managers, err := d.directory.ManagersOfPoint(ctx, *r.ServicePointID)
	if err != nil {
		log.Error().Err(err).Msg("list point managers failed")
	}
	for _, s := range managers {
		if _, dup := index[s.ID]; dup {
			continue
		}
		index[s.ID] = len(out)
		out = append(out, recipient{Staff: s, admin: s.IsAdmin})
	}
	return out
}

func (d *Dispatcher) render(r *response.Response, dec Decision) alert {
	pointName := "unknown service point"
	if r.ServicePointName != nil && *r.ServicePointName != "" {
		pointName = *r.ServicePointName
	}
	role := "respondent"
	if r.RespondentRole != "" {
		role = strings.ToLower(string(r.RespondentRole))
	}
	avg := fmt.Sprintf("%.2f", dec.AvgScore)

	return alert{
		title:        fmt.Sprintf("Low score %s: %s", avg, pointName),
		message:      fmt.Sprintf("A %s rated %s at %s (average of %d rated answers).", role, pointName, avg, dec.Rated),
		adminLink:    adminLink(r),
		managerLink:  managerLink(r, dec.AvgScore),
		pointName:    pointName,
		responseID:   r.ID,
		avgFormatted: avg,
	}
}

// adminLink opens the assessment review scoped to the survey and point.
func adminLink(r *response.Response) string {
	q := url.Values{}
	if r.SurveyID != nil {
		q.Set("survey_id", r.SurveyID.String())
	}
	if r.ServicePointID != nil {
		q.Set("point_id", r.ServicePointID.String())
	}
	return "/assessments/?" + q.Encode()
}

// managerLink opens the manager's results for the point, filtered to the
// one-point score band the average falls in.
func managerLink(r *response.Response, avg float64) string {
	lo := int(math.Floor(avg))
	q := url.Values{}
	if r.ServicePointID != nil {
		q.Set("point_id", r.ServicePointID.String())
	}
	q.Set("score", fmt.Sprintf("%d-%d", lo, lo+1))
	return "/manager/assessments/?" + q.Encode()
}

// announce sends n to the live feed. Clients that are not connected pick it up
// from the unread endpoint.
func (d *Dispatcher) announce(ctx context.Context, n *Notification, log zerolog.Logger) {
	if d.feed == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Msg("encode live notification failed")
		return
	}
	evt := websocket.Event{
		Type:      EventNotificationCreated,
		Topic:     StreamTopic(db.TenantFromContext(ctx), n.RecipientID),
		Timestamp: n.CreatedAt,
		Data:      data,
	}
	if err := d.feed.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("recipient_id", n.RecipientID.String()).Msg("live notification failed")
	}
}

func (d *Dispatcher) absolute(link string) string {
	return d.baseURL + link
}

func (d *Dispatcher) logChannelError(log zerolog.Logger, channel, recipient string, err error) {
	ev := log.Error()
	if errors.Is(err, notification.ErrNotConfigured) {
		ev = log.Warn()
	}
	var de *notification.DeliveryError
	if errors.As(err, &de) {
		body := de.Body
		if len(body) > 200 {
			body = body[:200]
		}
		ev = ev.Int("status_code", de.StatusCode).Str("body", body)
	}
	ev.Err(err).Str("channel", channel).Str("recipient", recipient).Msg("alert delivery failed")
}

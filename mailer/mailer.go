// Package mailer delivers course invite e-mails through SendGrid
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	templates "github.com/linesmerrill/course-roster-api/templates/html"
)

const senderName = "Course Roster"

// Invitation is one invite link to be e-mailed to a list of addresses
type Invitation struct {
	To         []string
	CourseID   string
	CourseName string
	Link       string
	ExpiresAt  time.Time
}

// InviteSender delivers invitations
type InviteSender interface {
	SendInvite(ctx context.Context, inv Invitation) error
}

// client is the subset of *sendgrid.Client used here
type client interface {
	Send(email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGrid sends invitations with the SendGrid v3 API
type SendGrid struct {
	client client
	from   *sgmail.Email
}

// New returns a SendGrid sender, or a sender that only logs when apiKey is empty
func New(apiKey, from string) InviteSender {
	if apiKey == "" {
		zap.S().Warn("SENDGRID_API_KEY is not set, invite e-mails will not be sent")
		return Noop{}
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(senderName, from),
	}
}

// SendInvite sends one message per recipient. Invalid addresses and failed sends
// are collected and returned together after every recipient has been tried.
func (s *SendGrid) SendInvite(ctx context.Context, inv Invitation) error {
	name := inv.CourseName
	if name == "" {
		name = inv.CourseID
	}
	subject := fmt.Sprintf("You're invited to join %s", name)
	htmlContent := templates.RenderInviteEmail(name, inv.Link, inv.ExpiresAt)
	plainText := fmt.Sprintf("You have been invited to join %s. Open %s to accept. The link expires on %s.",
		name, inv.Link, inv.ExpiresAt.UTC().Format(time.RFC1123))

	var errs []error
	for _, raw := range inv.To {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid address %q: %w", raw, err))
			continue
		}
		message := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail(addr.Name, addr.Address), plainText, htmlContent)
		response, err := s.client.Send(message)
		if err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", addr.Address, err))
			continue
		}
		if response.StatusCode >= 400 {
			zap.S().Errorw("sendgrid returned error status",
				"status", response.StatusCode,
				"body", response.Body,
				"courseId", inv.CourseID)
			errs = append(errs, fmt.Errorf("send to %s: sendgrid status %d", addr.Address, response.StatusCode))
			continue
		}
		zap.S().Infow("invite e-mail sent", "courseId", inv.CourseID, "to", addr.Address)
	}
	return errors.Join(errs...)
}

// Noop logs invitations instead of sending them
type Noop struct{}

// SendInvite implements InviteSender
func (Noop) SendInvite(_ context.Context, inv Invitation) error {
	zap.S().Infow("invite e-mail skipped, no mail provider configured",
		"courseId", inv.CourseID,
		"recipients", len(inv.To))
	return nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventbooking/internal/domain"
)

type emailNotifier struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	userRepo domain.UserRepository
	logger   *slog.Logger
}

// NewEmailNotifier returns a Notifier that emails the registrant on
// registration state changes. The template name is derived from the action:
// registration_created, registration_promoted, registration_cancelled.
func NewEmailNotifier(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, userRepo domain.UserRepository, logger *slog.Logger) domain.Notifier {
	return &emailNotifier{
		mailer:   mailer,
		renderer: renderer,
		userRepo: userRepo,
		logger:   logger,
	}
}

func (n *emailNotifier) Notify(ctx context.Context, reg *domain.EventRegistration, action string) error {
	if reg == nil {
		return fmt.Errorf("registration is nil")
	}
	user, err := n.userRepo.GetByID(ctx, reg.UserID)
	if err != nil {
		return fmt.Errorf("get user %s: %w", reg.UserID, err)
	}

	data := &domain.RegistrationEmailData{
		Email:     user.Email,
		FirstName: user.Name,
		EventID:   reg.EventID,
		Status:    string(reg.Status),
	}
	subject, htmlBody, textBody, err := n.renderer.Render("registration_"+action, data)
	if err != nil {
		return fmt.Errorf("render registration_%s template: %w", action, err)
	}
	if err := n.mailer.Send(user.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("send %s notification: %w", action, err)
	}
	n.logger.Info("registration notification sent",
		"registration_id", reg.ID, "action", action, "to", user.Email)
	return nil
}

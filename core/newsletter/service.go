// Package newsletter implements the marketing side: subscription, the
// referral counters and the scheduled drip sequence sent through Resend.
package newsletter

import (
	"context"
	"errors"
	"strings"
	"time"

	"pleia/cache"
	"pleia/core/mail"
	"pleia/logger"
	"pleia/model"
	"pleia/repository"
)

// ErrInvalidEmail rejects addresses that cannot receive mail.
var ErrInvalidEmail = errors.New("invalid email address")

// Drip sequence steps scheduled for every new subscriber.
var dripSteps = []struct {
	Step  string
	After time.Duration
}{
	{"welcome", 0},
	{"tips", 3 * 24 * time.Hour},
	{"referral_nudge", 7 * 24 * time.Hour},
}

// Service wires the newsletter repository, referral counters and mail
// delivery together.
type Service struct {
	repo   repository.NewsletterRepository
	users  repository.UserRepository
	sender mail.Sender
}

// NewService builds the newsletter service.
func NewService(repo repository.NewsletterRepository, users repository.UserRepository, sender mail.Sender) *Service {
	return &Service{repo: repo, users: users, sender: sender}
}

// Subscribe registers an email address, credits the referrer when a valid
// referral code is supplied and schedules the drip sequence. The welcome
// email is the sequence's first step, so the dispatcher delivers it on its
// next pass.
func (s *Service) Subscribe(ctx context.Context, email, referralCode string) (*model.NewsletterSubscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	// Referral codes are only honored when they belong to a real user.
	referredBy := ""
	if referralCode != "" {
		owner, err := s.users.GetUserByReferralCode(referralCode)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			referredBy = referralCode
		} else {
			logger.Warn("[Newsletter] Unknown referral code ignored",
				logger.String("code", referralCode))
		}
	}

	sub := &model.NewsletterSubscriber{
		Email:      email,
		ReferredBy: referredBy,
	}
	if _, err := s.repo.CreateSubscriber(sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubscriber) {
			existing, getErr := s.repo.GetSubscriberByEmail(email)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, err
	}

	if referredBy != "" {
		if _, err := cache.CreditReferral(ctx, referredBy); err != nil {
			logger.Warn("[Newsletter] Referral counter update failed",
				logger.String("code", referredBy),
				logger.ErrorField(err))
		}
	}

	now := time.Now()
	steps := make([]model.NewsletterWorkflow, 0, len(dripSteps))
	for _, d := range dripSteps {
		steps = append(steps, model.NewsletterWorkflow{
			SubscriberID: sub.ID,
			Step:         d.Step,
			SendAt:       now.Add(d.After),
			Status:       model.WorkflowPending,
		})
	}
	if err := s.repo.CreateWorkflowSteps(steps); err != nil {
		logger.Error("[Newsletter] Failed to schedule drip sequence",
			logger.Int64("subscriberID", sub.ID),
			logger.ErrorField(err))
	}

	logger.Info("[Newsletter] Subscriber added",
		logger.Int64("subscriberID", sub.ID),
		logger.Bool("referred", referredBy != ""))
	return sub, nil
}

// ReferralStats returns the counter for a referral code, resyncing the
// Redis mirror from the table when the key is cold.
func (s *Service) ReferralStats(ctx context.Context, code string) (int64, error) {
	n, err := cache.ReferralCount(ctx, code)
	if err == nil && n > 0 {
		return n, nil
	}

	fromTable, tableErr := s.repo.CountReferred(code)
	if tableErr != nil {
		if err != nil {
			return 0, err
		}
		return n, tableErr
	}
	if int64(fromTable) != n {
		if syncErr := cache.SetReferralCount(ctx, code, int64(fromTable)); syncErr != nil {
			logger.Warn("[Newsletter] Referral resync failed", logger.ErrorField(syncErr))
		}
	}
	return int64(fromTable), nil
}

// DispatchDue sends every workflow step whose time has come. Called from a
// periodic goroutine; each step is marked sent or failed independently.
func (s *Service) DispatchDue(ctx context.Context, batch int) error {
	steps, err := s.repo.DueWorkflowSteps(time.Now(), batch)
	if err != nil {
		return err
	}

	for _, step := range steps {
		sub, err := s.repo.GetSubscriberByID(step.SubscriberID)
		if err != nil || sub == nil {
			s.markStep(step.ID, model.WorkflowFailed)
			continue
		}

		subject, body := stepContent(step.Step)
		if err := s.sender.Send(ctx, sub.Email, subject, body); err != nil {
			logger.Warn("[Newsletter] Drip send failed",
				logger.Int64("stepID", step.ID),
				logger.String("step", step.Step),
				logger.ErrorField(err))
			s.markStep(step.ID, model.WorkflowFailed)
			continue
		}
		s.markStep(step.ID, model.WorkflowSent)
	}
	return nil
}

func (s *Service) markStep(id int64, status string) {
	if err := s.repo.MarkWorkflowStep(id, status); err != nil {
		logger.Error("[Newsletter] Failed to mark workflow step",
			logger.Int64("stepID", id),
			logger.ErrorField(err))
	}
}

func stepContent(step string) (subject, html string) {
	switch step {
	case "tips":
		return "Sácale más partido a Pleia",
			"<p>Tres trucos para afinar tus playlists generadas.</p>"
	case "referral_nudge":
		return "Invita y gana generaciones extra",
			"<p>Comparte tu código de referido y amplía tu límite mensual.</p>"
	default:
		return "Bienvenido a Pleia",
			"<p>Gracias por unirte a la newsletter de Pleia.</p>"
	}
}

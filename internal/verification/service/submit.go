package service

import (
	"context"
	"fmt"
	"strconv"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/email"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/requestcontext"
)

// Submit runs the decision engine over the verification's artifacts and
// settles it into COMPLETED or FAILED. Submitting a FAILED chain member
// resolves to the chain's active retry when one exists.
func (s *Service) Submit(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	start := requestcontext.Now(ctx)

	v, err := s.getVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	v, err = s.resolveSubmittable(ctx, v)
	if err != nil {
		return nil, err
	}

	docs, err := s.stores.Documents.ListByVerification(ctx, v.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}

	if v.Status == models.StatusPending {
		if err := v.Transition(models.StatusInProgress, requestcontext.Now(ctx)); err != nil {
			return nil, err
		}
		if err := s.stores.Verifications.Update(ctx, v); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification")
		}
	}

	result, err := s.pipeline.Decisions.Evaluate(ctx, v, docs)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Results.Upsert(ctx, result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store result")
	}

	target := models.StatusFailed
	if result.Passed {
		target = models.StatusCompleted
	}
	if err := v.Transition(target, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.stores.Verifications.Update(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification")
	}
	if err := s.syncRoot(ctx, v); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "result cache write failed",
				"verification_id", v.ID, "error", err)
		}
	}

	s.settleNotifications(ctx, v, result)
	if s.metrics != nil {
		s.metrics.ObserveSubmit(requestcontext.Now(ctx).Sub(start))
	}
	s.logger.InfoContext(ctx, "verification decided",
		"verification_id", v.ID, "passed", result.Passed,
		"score", result.Score, "risk_level", result.RiskLevel, "flags", result.Flags)
	return result, nil
}

// resolveSubmittable rejects terminal rows, routing FAILED chain members to
// the chain's active retry when one exists.
func (s *Service) resolveSubmittable(ctx context.Context, v *models.Verification) (*models.Verification, error) {
	switch v.Status {
	case models.StatusCompleted:
		return nil, dErrors.New(dErrors.CodeConflict, "verification already completed")
	case models.StatusFailed:
		active, err := s.stores.Verifications.FindActiveRetry(ctx, chainRoot(v))
		if err == nil {
			return active, nil
		}
		used, usedErr := s.retriesUsed(ctx, v)
		if usedErr != nil {
			return nil, usedErr
		}
		if used >= v.MaxRetries {
			return nil, dErrors.Newf(dErrors.CodeRetryExhausted,
				"retry limit of %d reached for this verification", v.MaxRetries)
		}
		return nil, dErrors.New(dErrors.CodePreconditionFailed,
			"verification failed, upload new documents to retry before submitting")
	default:
		return v, nil
	}
}

// settleNotifications fans the terminal outcome out to the partner webhook,
// the user's email, and the audit trail. All best-effort.
func (s *Service) settleNotifications(ctx context.Context, v *models.Verification, result *models.VerificationResult) {
	eventType := models.EventVerificationFailed
	action := audit.EventVerificationFailed
	if result.Passed {
		eventType = models.EventVerificationCompleted
		action = audit.EventVerificationCompleted
	}

	auditDetails := map[string]string{
		"passed":     strconv.FormatBool(result.Passed),
		"score":      fmt.Sprintf("%.3f", result.Score),
		"risk_level": string(result.RiskLevel),
	}
	s.audit(ctx, action, v, auditDetails)

	if s.webhooks != nil && v.WebhookURL != "" {
		s.webhooks.Notify(ctx, v.ID, eventType, v.WebhookURL, map[string]any{
			"verification_id": v.ID.String(),
			"status":          string(v.Status),
			"passed":          result.Passed,
			"score":           result.Score,
			"risk_level":      string(result.RiskLevel),
			"flags":           result.Flags,
		})
	}

	if s.emails == nil || v.NotifyEmail == "" {
		return
	}
	template := email.TemplateVerificationCompleted
	params := map[string]string{"verification_id": v.ID.String()}
	if !result.Passed {
		template = email.TemplateVerificationFailed
		if used, err := s.retriesUsed(ctx, v); err == nil && used < v.MaxRetries {
			template = email.TemplateRetryAvailable
			params["remaining_retries"] = strconv.Itoa(v.MaxRetries - used)
		}
	}
	if err := s.emails.Send(ctx, v.NotifyEmail, template, params); err != nil {
		s.logger.WarnContext(ctx, "email notification failed",
			"verification_id", v.ID, "recipient", v.NotifyEmail, "error", err)
	}
}

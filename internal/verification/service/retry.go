package service

import (
	"context"
	"errors"
	"strconv"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/requestcontext"
)

// chainRoot resolves the retry chain's root. Retries always point at the
// root directly, so one hop is enough.
func chainRoot(v *models.Verification) id.VerificationID {
	if v.ParentID != nil {
		return *v.ParentID
	}
	return v.ID
}

// retriesUsed counts the chained attempts spawned so far. The root itself is
// the original attempt and does not count against the budget.
func (s *Service) retriesUsed(ctx context.Context, v *models.Verification) (int, error) {
	count, err := s.stores.Verifications.CountByParent(ctx, chainRoot(v))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count retry chain")
	}
	return count, nil
}

// ensureUploadable resolves the verification an upload should land on.
//
// PENDING and IN_PROGRESS rows accept uploads directly. A FAILED row routes
// the upload into the retry chain: reuse the chain's active retry if one
// exists, otherwise spawn the next attempt, subject to the chain budget.
// COMPLETED rows and exhausted chains reject the upload.
func (s *Service) ensureUploadable(ctx context.Context, v *models.Verification) (target *models.Verification, spawned bool, err error) {
	if v.AcceptsUploads() {
		return v, false, nil
	}
	if v.Status == models.StatusCompleted {
		return nil, false, dErrors.New(dErrors.CodeConflict,
			"verification already completed, create a new one instead")
	}

	root := chainRoot(v)
	active, err := s.stores.Verifications.FindActiveRetry(ctx, root)
	if err == nil {
		return active, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve retry chain")
	}

	used, err := s.retriesUsed(ctx, v)
	if err != nil {
		return nil, false, err
	}
	if used >= v.MaxRetries {
		if s.metrics != nil {
			s.metrics.RecordRetryExhausted()
		}
		s.audit(ctx, audit.EventRetryExhausted, v, map[string]string{"root": root.String()})
		return nil, false, dErrors.Newf(dErrors.CodeRetryExhausted,
			"retry limit of %d reached for this verification", v.MaxRetries)
	}

	retry := v.NewRetry(root, used+1, requestcontext.Now(ctx))
	if err := s.stores.Verifications.Create(ctx, retry); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create retry")
	}

	if s.metrics != nil {
		s.metrics.RecordRetrySpawned()
	}
	s.audit(ctx, audit.EventRetrySpawned, retry, map[string]string{
		"root":        root.String(),
		"retry_count": strconv.Itoa(retry.RetryCount),
	})
	s.logger.InfoContext(ctx, "retry spawned",
		"verification_id", retry.ID, "root", root, "retry_count", retry.RetryCount)
	return retry, true, nil
}

// syncRoot mirrors a chained attempt's terminal status onto the chain root so
// partners polling the original ID see the latest outcome. The root is
// already terminal, so the write bypasses the transition table.
func (s *Service) syncRoot(ctx context.Context, v *models.Verification) error {
	if v.ParentID == nil {
		return nil
	}
	root, err := s.stores.Verifications.Get(ctx, *v.ParentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load chain root")
	}
	root.Status = v.Status
	root.CompletedAt = v.CompletedAt
	root.RetryCount = v.RetryCount
	if err := s.stores.Verifications.Update(ctx, root); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update chain root")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, root.ID); err != nil {
			s.logger.WarnContext(ctx, "result cache invalidation failed",
				"verification_id", root.ID, "error", err)
		}
	}
	return nil
}

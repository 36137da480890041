package service

import (
	"context"
	"errors"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/policy"
	"github.com/ds124wfegd/railbook/pkg/queue"
	"github.com/sirupsen/logrus"
)

const defaultFailedTaskLimit = 50

type queueAdminService struct {
	queue QueueInspector
	authz AdminAuthorizer
}

func NewQueueAdminService(q QueueInspector, authz AdminAuthorizer) QueueAdminService {
	return &queueAdminService{queue: q, authz: authz}
}

func (s *queueAdminService) GetOverview(ctx context.Context, identity *entity.Identity) (*QueueOverview, error) {
	if err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}

	queueStats, err := s.queue.GetQueueStats(ctx)
	if err != nil {
		return nil, err
	}
	dlqStats, err := s.queue.DLQ().GetDLQStats(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueOverview{Queue: queueStats, DLQ: dlqStats}, nil
}

func (s *queueAdminService) ListFailedTasks(ctx context.Context, identity *entity.Identity, limit int) ([]*queue.FailedTask, error) {
	if err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFailedTaskLimit
	}
	return s.queue.DLQ().GetFailedTasks(ctx, limit)
}

// RequeueFailedTask returns the task to the main queue with a fresh attempt budget
func (s *queueAdminService) RequeueFailedTask(ctx context.Context, identity *entity.Identity, taskID string) error {
	if err := s.authorize(ctx, identity); err != nil {
		return err
	}

	if err := s.queue.DLQ().RequeueFailedTask(ctx, taskID); err != nil {
		if errors.Is(err, queue.ErrTaskNotInDLQ) {
			return entity.NewNotFoundError(err)
		}
		return err
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  taskID,
		"admin_id": identity.UserID,
	}).Info("Failed notification task requeued")
	return nil
}

func (s *queueAdminService) authorize(ctx context.Context, identity *entity.Identity) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	return s.authz.AuthorizeAdmin(ctx, identity, policy.ActionManageQueue)
}

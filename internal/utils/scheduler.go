package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/sirupsen/logrus"
)

const (
	scheduleGroup  = "default"
	reminderLead   = 24 * time.Hour
	atLayout       = "2006-01-02T15:04:05"
	schedulePrefix = "goal-deadline-"
)

var ErrReminderTooLate = errors.New("goal deadline is too close for a reminder")

type SchedulerAPI interface {
	GetSchedule(ctx context.Context, params *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// ReminderEvent is the payload the deadline schedule delivers to the
// reminder function.
type ReminderEvent struct {
	UserID   string `json:"userId"`
	GoalID   string `json:"goalId"`
	Deadline string `json:"deadline"`
}

// DeadlineReminder keeps one EventBridge schedule per user that fires a day
// before the active goal's deadline.
type DeadlineReminder struct {
	logger    *logrus.Entry
	client    SchedulerAPI
	targetArn string
	roleArn   string
	now       func() time.Time
}

func NewDeadlineReminder(logger *logrus.Entry, client SchedulerAPI, targetArn, roleArn string) *DeadlineReminder {
	return &DeadlineReminder{
		logger:    logger,
		client:    client,
		targetArn: targetArn,
		roleArn:   roleArn,
		now:       time.Now,
	}
}

// Schedule replaces the user's reminder with one for the given goal deadline.
func (r *DeadlineReminder) Schedule(ctx context.Context, userID, goalID string, deadline time.Time) error {
	fireAt := deadline.Add(-reminderLead).UTC()
	if !fireAt.After(r.now()) {
		return ErrReminderTooLate
	}

	if err := r.deleteExistingSchedule(ctx, userID); err != nil {
		return err
	}

	payload, err := json.Marshal(ReminderEvent{
		UserID:   userID,
		GoalID:   goalID,
		Deadline: deadline.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	name := scheduleName(userID)
	expression := fmt.Sprintf("at(%s)", fireAt.Format(atLayout))
	out, err := r.client.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(name),
		GroupName:                  aws.String(scheduleGroup),
		ScheduleExpression:         aws.String(expression),
		ScheduleExpressionTimezone: aws.String("UTC"),
		ActionAfterCompletion:      types.ActionAfterCompletionDelete,
		FlexibleTimeWindow: &types.FlexibleTimeWindow{
			Mode: types.FlexibleTimeWindowModeOff,
		},
		Target: &types.Target{
			Arn:     aws.String(r.targetArn),
			RoleArn: aws.String(r.roleArn),
			Input:   aws.String(string(payload)),
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to create deadline schedule")
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"scheduleName": name,
		"userID":       userID,
		"expression":   expression,
		"scheduleArn":  aws.ToString(out.ScheduleArn),
	}).Info("Created deadline reminder")
	return nil
}

func (r *DeadlineReminder) deleteExistingSchedule(ctx context.Context, userID string) error {
	name := scheduleName(userID)
	if _, err := r.client.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(scheduleGroup),
	}); err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to get schedule: %w", err)
	}

	if _, err := r.client.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(scheduleGroup),
	}); err != nil {
		return fmt.Errorf("failed to delete existing schedule: %w", err)
	}
	r.logger.WithField("userID", userID).Info("Deleted existing deadline reminder")
	return nil
}

func scheduleName(userID string) string {
	return schedulePrefix + userID
}

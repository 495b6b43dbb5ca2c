package utils

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/sirupsen/logrus"
)

type fakeScheduler struct {
	exists  bool
	created []*scheduler.CreateScheduleInput
	deleted int
}

func (f *fakeScheduler) GetSchedule(ctx context.Context, params *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error) {
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &scheduler.GetScheduleOutput{Name: params.Name}, nil
}

func (f *fakeScheduler) CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error) {
	f.created = append(f.created, params)
	return &scheduler.CreateScheduleOutput{ScheduleArn: aws.String("arn:test")}, nil
}

func (f *fakeScheduler) DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error) {
	f.deleted++
	return &scheduler.DeleteScheduleOutput{}, nil
}

func TestDeadlineReminder(t *testing.T) {
	logger := logrus.WithField("component", "test")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	newReminder := func(client SchedulerAPI) *DeadlineReminder {
		r := NewDeadlineReminder(logger, client, "arn:aws:lambda:target", "arn:aws:iam::role")
		r.now = func() time.Time { return now }
		return r
	}

	t.Run("Creates one-time schedule a day before the deadline", func(t *testing.T) {
		client := &fakeScheduler{}
		deadline := now.Add(72 * time.Hour)
		if err := newReminder(client).Schedule(context.Background(), "U123", "5", deadline); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(client.created) != 1 || client.deleted != 0 {
			t.Fatalf("Expected 1 create and no delete, got %d/%d", len(client.created), client.deleted)
		}
		in := client.created[0]
		if aws.ToString(in.Name) != "goal-deadline-U123" {
			t.Errorf("unexpected name %s", aws.ToString(in.Name))
		}
		if aws.ToString(in.ScheduleExpression) != "at(2025-03-03T12:00:00)" {
			t.Errorf("unexpected expression %s", aws.ToString(in.ScheduleExpression))
		}
		var event ReminderEvent
		if err := json.Unmarshal([]byte(aws.ToString(in.Target.Input)), &event); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if event.UserID != "U123" || event.GoalID != "5" {
			t.Errorf("unexpected payload: %+v", event)
		}
	})

	t.Run("Replaces existing schedule", func(t *testing.T) {
		client := &fakeScheduler{exists: true}
		if err := newReminder(client).Schedule(context.Background(), "U123", "5", now.Add(72*time.Hour)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.deleted != 1 || len(client.created) != 1 {
			t.Errorf("Expected delete then create, got %d/%d", client.deleted, len(client.created))
		}
	})

	t.Run("Too late", func(t *testing.T) {
		client := &fakeScheduler{}
		err := newReminder(client).Schedule(context.Background(), "U123", "5", now.Add(time.Hour))
		if !errors.Is(err, ErrReminderTooLate) {
			t.Errorf("Expected ErrReminderTooLate, got %v", err)
		}
		if len(client.created) != 0 {
			t.Errorf("Expected no schedule")
		}
	})
}

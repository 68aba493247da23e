package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/jacobwhite/taskdeck/internal/models"
)

// Notifier defines the interface for user-facing task notifications
type Notifier interface {
	NotifyHighPriorityTask(ctx context.Context, email string, task *models.Task) error
	NotifyOverdueTask(ctx context.Context, email, title string, dueDate time.Time) error
}

// AWSSESNotifier sends notification emails using AWS SES
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// NotifyHighPriorityTask emails the task owner about a newly created
// high-priority task.
func (n *AWSSESNotifier) NotifyHighPriorityTask(ctx context.Context, email string, task *models.Task) error {
	subject := fmt.Sprintf("[%s] New task: %s", task.Priority, task.Title)

	body := fmt.Sprintf("A new %s priority task was created in your account.\n\nTitle: %s\n",
		task.Priority, task.Title)
	if task.Description != "" {
		body += fmt.Sprintf("Description: %s\n", task.Description)
	}
	if task.DueDate != nil {
		body += fmt.Sprintf("Due: %s\n", task.DueDate.Format(time.RFC1123))
	}

	return n.send(ctx, email, subject, body)
}

// NotifyOverdueTask emails the task owner about a task past its due date.
func (n *AWSSESNotifier) NotifyOverdueTask(ctx context.Context, email, title string, dueDate time.Time) error {
	subject := fmt.Sprintf("Task overdue: %s", title)
	body := fmt.Sprintf("Your task %q was due %s and is still open.\n", title, dueDate.Format(time.RFC1123))
	return n.send(ctx, email, subject, body)
}

func (n *AWSSESNotifier) send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := n.sesClient.SendEmail(ctx, input); err != nil {
		n.logger.Error("failed to send notification email", slog.Any("error", err))
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	n.logger.Info("notification email sent", slog.String("subject", subject))
	return nil
}

package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/repositories"
)

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// SeedUser inserts a user row and returns it. The password hash is a fixed
// bcrypt digest; repository tests never verify credentials.
func SeedUser(ctx context.Context, repo *repositories.UserRepository, suffix string) (*models.User, error) {
	email, _ := TestUser(suffix)
	return repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: "$2a$14$fixedhashfixedhashfixedhashfixedhashfixedhashfixedha",
		Name:         "Integration " + suffix,
		Role:         "user",
	})
}

// SeedTask inserts a task for the given owner with sensible defaults.
func SeedTask(ctx context.Context, repo *repositories.TaskRepository, userID, title string, mutate func(*models.Task)) (*models.Task, error) {
	task := &models.Task{
		UserID:      userID,
		Title:       title,
		Description: "seeded by integration test",
		Status:      models.StatusPending,
		Priority:    models.PriorityMedium,
	}
	if mutate != nil {
		mutate(task)
	}
	return repo.Create(ctx, task)
}

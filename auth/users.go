package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/models"
	"github.com/noisersup/filesmanager/queue"
)

type registration struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

var (
	validate        = validator.New()
	missingMessages = map[string]string{
		"Email":    "Missing email",
		"Password": "Missing password",
	}
)

// Register creates a user and queues its welcome job
func (a *Auth) Register(ctx context.Context, email, password string) (*models.User, error) {
	if err := validate.Struct(registration{Email: email, Password: password}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, models.Invalid(missingMessages[verrs[0].Field()])
		}
		return nil, err
	}

	_, err := a.db.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, models.Invalid("Already exist")
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	u := &models.User{Id: uuid.New(), Email: email, PasswordHash: HashPassword(password)}
	err = a.db.NewUser(ctx, u)
	if errors.Is(err, models.ErrUserExists) {
		return nil, models.Invalid("Already exist")
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	payload, _ := json.Marshal(models.UserJob{UserId: u.Id.String()})
	if err := a.jobs.Publish(ctx, models.UserQueue, payload); err != nil {
		a.l.SErr("register", "queueing welcome for %s: %s", u.Id, err.Error())
	}
	return u, nil
}

// Me returns the user behind token
func (a *Auth) Me(ctx context.Context, token string) (*models.User, error) {
	id, err := a.ResolveUser(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := a.db.GetUser(ctx, id)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return u, nil
}

// Welcome handles userQueue jobs
func (a *Auth) Welcome(ctx context.Context, payload []byte) error {
	var job models.UserJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return queue.Permanent(fmt.Errorf("malformed job: %w", err))
	}
	if job.UserId == "" {
		return queue.Permanent(errors.New("Missing userId"))
	}
	id, err := uuid.Parse(job.UserId)
	if err != nil {
		return queue.Permanent(errors.New("Missing userId"))
	}

	u, err := a.db.GetUser(ctx, id)
	if errors.Is(err, models.ErrUserNotFound) {
		return errors.New("User not found")
	}
	if err != nil {
		return err
	}
	a.l.Log("Welcome %s!", u.Email)
	return nil
}

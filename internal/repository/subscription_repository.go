package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type SubscriptionRepository interface {
	FindByEmail(ctx context.Context, email string) (model.Subscription, error)
	Create(ctx context.Context, s model.Subscription) (model.Subscription, error)
	SetActive(ctx context.Context, id int64, active bool) error
	ListActive(ctx context.Context) ([]model.Subscription, error)
	MarkSent(ctx context.Context, ids []int64, at time.Time) error
}

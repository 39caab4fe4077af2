package guest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

const subscriptionsPath = "/guest-subscriptions"

type SubscriptionService struct {
	client *api.Client
	retry  RetryConfig
}

func NewSubscriptionService(client *api.Client, retry RetryConfig) *SubscriptionService {
	return &SubscriptionService{client: client, retry: retry}
}

func (s *SubscriptionService) Create(ctx context.Context, req models.CreateSubscriptionRequest, key string) (*models.CreateSubscriptionResponse, error) {
	var out models.CreateSubscriptionResponse
	err := s.client.Post(ctx, subscriptionsPath, req, &out, "Failed to create subscription", api.WithIdempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return &out, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (*models.GuestSubscription, error) {
	var out models.GuestSubscription
	if err := s.client.Get(ctx, subscriptionsPath+"/"+url.PathEscape(id), &out, "Failed to fetch subscription"); err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return &out, nil
}

func (s *SubscriptionService) UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestSubscription, error) {
	var out models.GuestSubscription
	path := subscriptionsPath + "/" + url.PathEscape(id) + "/payment-status"
	err := retryUpdate(ctx, s.retry, "subscription payment", func() error {
		return s.client.Put(ctx, path, upd, &out, "Failed to update payment status", api.WithIdempotencyKey(key))
	})
	if err != nil {
		return nil, fmt.Errorf("update subscription %s payment: %w", id, err)
	}
	return &out, nil
}

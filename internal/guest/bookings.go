package guest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

const bookingsPath = "/guest-bookings"

type BookingService struct {
	client *api.Client
	retry  RetryConfig
}

func NewBookingService(client *api.Client, retry RetryConfig) *BookingService {
	return &BookingService{client: client, retry: retry}
}

func (s *BookingService) Create(ctx context.Context, req models.CreateBookingRequest, key string) (*models.CreateBookingResponse, error) {
	var out models.CreateBookingResponse
	err := s.client.Post(ctx, bookingsPath, req, &out, "Failed to create guest booking", api.WithIdempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &out, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.GuestBooking, error) {
	var out models.GuestBooking
	if err := s.client.Get(ctx, bookingsPath+"/"+url.PathEscape(id), &out, "Failed to fetch guest booking"); err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return &out, nil
}

func (s *BookingService) UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestBooking, error) {
	var out models.GuestBooking
	path := bookingsPath + "/" + url.PathEscape(id) + "/payment"
	err := retryUpdate(ctx, s.retry, "booking payment", func() error {
		return s.client.Put(ctx, path, upd, &out, "Failed to update payment status", api.WithIdempotencyKey(key))
	})
	if err != nil {
		return nil, fmt.Errorf("update booking %s payment: %w", id, err)
	}
	return &out, nil
}

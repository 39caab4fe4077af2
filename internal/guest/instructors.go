package guest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

type InstructorService struct {
	client *api.Client
}

func NewInstructorService(client *api.Client) *InstructorService {
	return &InstructorService{client: client}
}

func (s *InstructorService) List(ctx context.Context) ([]models.Instructor, error) {
	var out []models.Instructor
	if err := s.client.Get(ctx, "/instructors", &out, "Failed to fetch instructors"); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return out, nil
}

func (s *InstructorService) Get(ctx context.Context, id string) (*models.Instructor, error) {
	var out models.Instructor
	if err := s.client.Get(ctx, "/instructors/"+url.PathEscape(id), &out, "Failed to fetch instructor"); err != nil {
		return nil, fmt.Errorf("get instructor %s: %w", id, err)
	}
	return &out, nil
}

func (s *InstructorService) BySpecialty(ctx context.Context, specialty string) ([]models.Instructor, error) {
	var out []models.Instructor
	if err := s.client.Get(ctx, "/instructors/specialty/"+url.PathEscape(specialty), &out, "Failed to fetch instructors by specialty"); err != nil {
		return nil, fmt.Errorf("instructors by specialty %s: %w", specialty, err)
	}
	return out, nil
}

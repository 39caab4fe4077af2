package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

// DefaultNewest is how many courses the home page shows.
const DefaultNewest = 4

type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// ListPublished fetches the published catalog. Anything the API returns
// unpublished is dropped so guests never see drafts.
func (s *Service) ListPublished(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := s.client.Get(ctx, "/courses?isPublished=true", &courses, "Failed to fetch courses"); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	published := courses[:0]
	for _, c := range courses {
		if c.IsPublished {
			published = append(published, c)
		}
	}
	return published, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := s.client.Get(ctx, "/courses/"+url.PathEscape(id), &c, "Failed to fetch course"); err != nil {
		return nil, fmt.Errorf("get course %s: %w", id, err)
	}
	return &c, nil
}

func (s *Service) Newest(ctx context.Context, n int) ([]models.Course, error) {
	courses, err := s.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	return NewestOf(courses, n), nil
}

func (s *Service) ByLevel(ctx context.Context, level models.Level) ([]models.Course, error) {
	courses, err := s.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByLevel(courses, level), nil
}

// NewestOf sorts a copy by creation time, newest first, and keeps n.
func NewestOf(courses []models.Course, n int) []models.Course {
	sorted := make([]models.Course, len(courses))
	copy(sorted, courses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func FilterByLevel(courses []models.Course, level models.Level) []models.Course {
	var out []models.Course
	for _, c := range courses {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

package service

import (
	"context"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/repository"
)

// nextSweepingHorizon bounds how far ahead the next-sweeping scan looks.
// Five weeks covers every week-of-month pattern at least once.
const nextSweepingHorizon = 35 * 24 * time.Hour

// ScheduleWithNext pairs a candidate with its next sweeping start
type ScheduleWithNext struct {
	models.ScheduleCandidate
	NextSweeping *time.Time `json:"next_sweeping,omitempty"`
}

// ScheduleService handles business logic for sweeping schedules
type ScheduleService struct {
	repo *repository.ScheduleRepository
	now  func() time.Time
}

// NewScheduleService creates a new schedule service
func NewScheduleService(repo *repository.ScheduleRepository) *ScheduleService {
	return &ScheduleService{repo: repo, now: time.Now}
}

// Near returns schedule candidates around a coordinate with their next
// sweeping times attached.
func (s *ScheduleService) Near(ctx context.Context, filter models.ScheduleNearFilter) ([]ScheduleWithNext, error) {
	candidates, err := s.repo.CandidatesWithin(ctx, models.Coordinate{Lat: filter.Lat, Lon: filter.Lon}, filter.RadiusM)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]ScheduleWithNext, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, ScheduleWithNext{
			ScheduleCandidate: cand,
			NextSweeping:      cand.NextSweeping(now, nextSweepingHorizon),
		})
	}
	return out, nil
}

package cli

import (
	"context"

	"github.com/Dhanush6858/green-gaurdian/internal/app"
	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/scheduler/jobs"
)

// AppService runs CLI operations directly against a wired application.
type AppService struct {
	App *app.App
}

var _ ProgressService = AppService{}

func (s AppService) Progress(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error) {
	return s.App.GetProgress.Handle(ctx, q)
}

func (s AppService) RecordAction(ctx context.Context, cmd command.RecordActionCommand) (*command.RecordActionResult, error) {
	return s.App.RecordAction.Handle(ctx, cmd)
}

func (s AppService) Challenges(ctx context.Context, q query.GetChallengesQuery) (*query.ChallengesDTO, error) {
	return s.App.GetChallenges.Handle(ctx, q)
}

func (s AppService) Achievements(ctx context.Context, q query.GetAchievementsQuery) (*query.AchievementsDTO, error) {
	return s.App.GetAchievements.Handle(ctx, q)
}

func (s AppService) Reset(ctx context.Context, cmd command.ResetProgressCommand) error {
	return s.App.ResetProgress.Handle(ctx, cmd)
}

// Sweep runs the rollover job once and returns its statistics. Stats are
// returned together with the joined per-installation errors.
func (s AppService) Sweep(ctx context.Context) (*jobs.RolloverSweepStats, error) {
	job := s.App.RolloverJob()
	err := job.Run(ctx)
	return job.LastRunStats(), err
}

func (s AppService) Recommend(ctx context.Context, q query.GetRecommendationsQuery) *query.RecommendationsDTO {
	return s.App.GetRecommendations.Handle(ctx, q)
}

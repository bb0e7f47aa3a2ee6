package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/scheduler/jobs"
	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
)

type FakeProgressService struct {
	ProgressFunc     func(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error)
	RecordFunc       func(ctx context.Context, cmd command.RecordActionCommand) (*command.RecordActionResult, error)
	ChallengesFunc   func(ctx context.Context, q query.GetChallengesQuery) (*query.ChallengesDTO, error)
	AchievementsFunc func(ctx context.Context, q query.GetAchievementsQuery) (*query.AchievementsDTO, error)
	ResetFunc        func(ctx context.Context, cmd command.ResetProgressCommand) error
	SweepFunc        func(ctx context.Context) (*jobs.RolloverSweepStats, error)
	RecommendFunc    func(ctx context.Context, q query.GetRecommendationsQuery) *query.RecommendationsDTO
}

func (f *FakeProgressService) Progress(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error) {
	if f.ProgressFunc != nil {
		return f.ProgressFunc(ctx, q)
	}
	return &query.ProgressDTO{InstallationID: q.InstallationID}, nil
}

func (f *FakeProgressService) RecordAction(ctx context.Context, cmd command.RecordActionCommand) (*command.RecordActionResult, error) {
	if f.RecordFunc != nil {
		return f.RecordFunc(ctx, cmd)
	}
	return &command.RecordActionResult{Persisted: true}, nil
}

func (f *FakeProgressService) Challenges(ctx context.Context, q query.GetChallengesQuery) (*query.ChallengesDTO, error) {
	if f.ChallengesFunc != nil {
		return f.ChallengesFunc(ctx, q)
	}
	return &query.ChallengesDTO{}, nil
}

func (f *FakeProgressService) Achievements(ctx context.Context, q query.GetAchievementsQuery) (*query.AchievementsDTO, error) {
	if f.AchievementsFunc != nil {
		return f.AchievementsFunc(ctx, q)
	}
	return &query.AchievementsDTO{}, nil
}

func (f *FakeProgressService) Reset(ctx context.Context, cmd command.ResetProgressCommand) error {
	if f.ResetFunc != nil {
		return f.ResetFunc(ctx, cmd)
	}
	return nil
}

func (f *FakeProgressService) Sweep(ctx context.Context) (*jobs.RolloverSweepStats, error) {
	if f.SweepFunc != nil {
		return f.SweepFunc(ctx)
	}
	return &jobs.RolloverSweepStats{ResetByScope: map[string]int{}}, nil
}

func (f *FakeProgressService) Recommend(ctx context.Context, q query.GetRecommendationsQuery) *query.RecommendationsDTO {
	if f.RecommendFunc != nil {
		return f.RecommendFunc(ctx, q)
	}
	return &query.RecommendationsDTO{Payload: recommendation.Fallback(q.Product), Product: q.Product}
}

// capture redirects pterm output and returns the buffer it writes to.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	pterm.SetDefaultOutput(&buf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
	return &buf
}

func TestProgress_PrintsTable(t *testing.T) {
	out := capture(t)

	fake := &FakeProgressService{
		ProgressFunc: func(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error) {
			assert.Equal(t, 3, q.RecentActivity)
			dto := &query.ProgressDTO{InstallationID: q.InstallationID, StreakAtRisk: true}
			dto.Level, dto.LevelName, dto.XP = 2, "Eco Explorer", 150
			dto.Streak, dto.LongestStreak = 4, 9
			dto.TotalCO2Saved = 12.5
			return dto, nil
		},
	}
	c := NewProgressCmd(fake, out)

	require.NoError(t, c.Progress(context.Background(), ProgressInput{InstallationID: "inst-1", Recent: 3}))

	s := out.String()
	assert.Contains(t, s, "inst-1")
	assert.Contains(t, s, "Eco Explorer")
	assert.Contains(t, s, "4 (longest 9) at risk")
	assert.Contains(t, s, "12.5 kg")
}

func TestProgress_JSONOutput(t *testing.T) {
	capture(t)
	var buf bytes.Buffer
	c := NewProgressCmd(&FakeProgressService{}, &buf)

	require.NoError(t, c.Progress(context.Background(), ProgressInput{InstallationID: "inst-1", Output: "json"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "inst-1", got["installationId"])
}

func TestProgress_RejectsUnknownOutput(t *testing.T) {
	c := NewProgressCmd(&FakeProgressService{}, nil)
	err := c.Progress(context.Background(), ProgressInput{InstallationID: "inst-1", Output: "yaml"})
	assert.ErrorContains(t, err, "unsupported --output")
}

func TestRecord(t *testing.T) {
	out := capture(t)

	var got command.RecordActionCommand
	fake := &FakeProgressService{
		RecordFunc: func(ctx context.Context, cmd command.RecordActionCommand) (*command.RecordActionResult, error) {
			got = cmd
			return &command.RecordActionResult{
				XPGained:             75,
				TotalXP:              75,
				Streak:               1,
				UnlockedAchievements: []string{"first_steps"},
				Persisted:            false,
			}, nil
		},
	}
	c := NewProgressCmd(fake, out)

	err := c.Record(context.Background(), RecordInput{
		InstallationID: "inst-1",
		Kind:           "chose_secondhand",
		CO2Kg:          2,
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	assert.Equal(t, "chose_secondhand", got.Kind)
	assert.Equal(t, 2.0, got.CO2Kg)
	assert.Equal(t, "k1", got.IdempotencyKey)

	s := out.String()
	assert.Contains(t, s, "+75 XP")
	assert.Contains(t, s, "Achievement unlocked: first_steps")
	assert.Contains(t, s, "kept in memory only")
}

func TestRecord_RequiresKind(t *testing.T) {
	c := NewProgressCmd(&FakeProgressService{}, nil)
	err := c.Record(context.Background(), RecordInput{InstallationID: "inst-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chose_secondhand")
}

func TestRecord_Duplicate(t *testing.T) {
	out := capture(t)
	fake := &FakeProgressService{
		RecordFunc: func(context.Context, command.RecordActionCommand) (*command.RecordActionResult, error) {
			return &command.RecordActionResult{Duplicate: true, Persisted: true}, nil
		},
	}
	c := NewProgressCmd(fake, out)

	require.NoError(t, c.Record(context.Background(), RecordInput{InstallationID: "inst-1", Kind: "price_alert_set", IdempotencyKey: "k1"}))
	assert.Contains(t, out.String(), "already recorded")
}

func TestChallenges(t *testing.T) {
	out := capture(t)
	fake := &FakeProgressService{
		ChallengesFunc: func(ctx context.Context, q query.GetChallengesQuery) (*query.ChallengesDTO, error) {
			assert.True(t, q.ActiveOnly)
			return &query.ChallengesDTO{
				Daily: []progress.Challenge{{
					ChallengeDefinition: progress.ChallengeDefinition{ID: "daily_eco_choices", Name: "Daily Eco Hero", Scope: progress.ScopeDaily, Target: 3, XPReward: 50},
					CurrentProgress:     1,
				}},
				Completed: 2,
			}, nil
		},
	}
	c := NewProgressCmd(fake, out)

	require.NoError(t, c.Challenges(context.Background(), ChallengesInput{InstallationID: "inst-1", ActiveOnly: true}))
	s := out.String()
	assert.Contains(t, s, "daily_eco_choices")
	assert.Contains(t, s, "1/3")
	assert.Contains(t, s, "2 completed")
}

func TestChallenges_Empty(t *testing.T) {
	out := capture(t)
	c := NewProgressCmd(&FakeProgressService{}, out)

	require.NoError(t, c.Challenges(context.Background(), ChallengesInput{InstallationID: "inst-1"}))
	assert.Contains(t, out.String(), "No challenges found")
}

func TestAchievements(t *testing.T) {
	out := capture(t)
	fake := &FakeProgressService{
		AchievementsFunc: func(context.Context, query.GetAchievementsQuery) (*query.AchievementsDTO, error) {
			return &query.AchievementsDTO{
				Achievements: []progress.AchievementStatus{
					{Achievement: progress.Achievement{ID: "first_steps", Name: "First Steps", XPReward: 50}, Unlocked: true},
				},
				Unlocked: 1,
				Total:    12,
			}, nil
		},
	}
	c := NewProgressCmd(fake, out)

	require.NoError(t, c.Achievements(context.Background(), AchievementsInput{InstallationID: "inst-1"}))
	s := out.String()
	assert.Contains(t, s, "First Steps")
	assert.Contains(t, s, "1 of 12 unlocked")
}

func TestReset_SkipConfirm(t *testing.T) {
	out := capture(t)
	var resetID string
	fake := &FakeProgressService{
		ResetFunc: func(ctx context.Context, cmd command.ResetProgressCommand) error {
			resetID = cmd.InstallationID
			return nil
		},
	}
	c := NewProgressCmd(fake, out)

	require.NoError(t, c.Reset(context.Background(), ResetInput{InstallationID: "inst-1", SkipConfirm: true}))
	assert.Equal(t, "inst-1", resetID)
	assert.Contains(t, out.String(), "erased")
}

func TestSweep_ReportsFailures(t *testing.T) {
	out := capture(t)
	failure := errors.New("inst-2: store unavailable")
	fake := &FakeProgressService{
		SweepFunc: func(context.Context) (*jobs.RolloverSweepStats, error) {
			return &jobs.RolloverSweepStats{
				Installations: 2,
				Reset:         1,
				ResetByScope:  map[string]int{"weekly": 1, "daily": 1},
				Failed:        1,
				Duration:      15 * time.Millisecond,
				Errors:        []error{failure},
			}, failure
		},
	}
	c := NewProgressCmd(fake, out)

	err := c.Sweep(context.Background(), SweepInput{})
	assert.ErrorIs(t, err, failure)

	s := out.String()
	assert.Contains(t, s, "Installations")
	assert.Less(t, strings.Index(s, "daily"), strings.Index(s, "weekly"))
	assert.Contains(t, s, "store unavailable")
}

func TestSweep_JSON(t *testing.T) {
	capture(t)
	var buf bytes.Buffer
	c := NewProgressCmd(&FakeProgressService{}, &buf)

	require.NoError(t, c.Sweep(context.Background(), SweepInput{Output: "json"}))
	var got sweepJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Zero(t, got.Installations)
}

func TestRecommend(t *testing.T) {
	out := capture(t)
	c := NewProgressCmd(&FakeProgressService{}, out)

	require.NoError(t, c.Recommend(context.Background(), RecommendInput{Title: "Apple iPhone 15 Pro", Price: "$999"}))
	s := out.String()
	assert.Contains(t, s, "source: fallback")
	assert.Contains(t, s, "Advice:")

	assert.Error(t, c.Recommend(context.Background(), RecommendInput{Title: " "}))
}

func TestHashKey(t *testing.T) {
	var buf bytes.Buffer
	c := AuthCmd{in: strings.NewReader("from-stdin\n"), out: &buf}

	require.NoError(t, c.HashKey(HashKeyInput{Cost: bcrypt.MinCost}))
	hash := strings.TrimSpace(buf.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("from-stdin")))

	empty := AuthCmd{in: strings.NewReader(""), out: &buf}
	assert.Error(t, empty.HashKey(HashKeyInput{}))
}

func TestToken(t *testing.T) {
	capture(t)
	auth := handlers.NewAuthenticator(handlers.AuthConfig{
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:    time.Hour,
	})
	var buf bytes.Buffer
	c := AuthCmd{auth: auth, out: &buf}

	require.NoError(t, c.Token(TokenInput{InstallationID: "inst-1", Output: "json"}))
	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	id, err := auth.ParseToken(got["token"])
	require.NoError(t, err)
	assert.Equal(t, "inst-1", id)
}

func TestRootCommand_UsesService(t *testing.T) {
	capture(t)
	var opened, closed bool
	var gotID string

	orig := openService
	openService = func(cmd *cobra.Command) (ProgressService, func(), error) {
		opened = true
		return &FakeProgressService{
			ProgressFunc: func(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error) {
				gotID = q.InstallationID
				return &query.ProgressDTO{InstallationID: q.InstallationID}, nil
			},
		}, func() { closed = true }, nil
	}
	t.Cleanup(func() { openService = orig })

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"progress", "inst-9", "-o", "json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute(context.Background()))
	assert.True(t, opened)
	assert.True(t, closed)
	assert.Equal(t, "inst-9", gotID)
	assert.Contains(t, buf.String(), `"installationId": "inst-9"`)
}

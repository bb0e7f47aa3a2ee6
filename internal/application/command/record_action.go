// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/activity"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTION COMMAND
// Records one sustainable choice: streak, counters, XP, challenge progress,
// achievements and the activity log entry, all in one save.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActionCommand contains the data to record an action.
type RecordActionCommand struct {
	// InstallationID identifies the progress record.
	InstallationID string

	// Kind is one of progress.AllActionKinds().
	Kind string

	// Amount is kilograms for saved_emissions and dollars for saved_money.
	Amount float64

	// CO2Kg and MoneySaved are optional details of chose_secondhand and
	// chose_eco_shipping.
	CO2Kg      float64
	MoneySaved float64

	// IdempotencyKey, when set, makes a repeated call a no-op.
	IdempotencyKey string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command and returns the typed action.
func (c RecordActionCommand) Validate() (shared.InstallationID, progress.Action, error) {
	id, err := shared.NewInstallationID(c.InstallationID)
	if err != nil {
		return "", nil, err
	}
	if len(c.IdempotencyKey) > 128 {
		return "", nil, shared.NewDomainError("progress", "RecordAction", shared.ErrInvalidInput,
			"idempotency key is longer than 128 characters")
	}
	action, err := progress.NewAction(progress.ActionParams{
		Kind:       c.Kind,
		Amount:     c.Amount,
		CO2Kg:      c.CO2Kg,
		MoneySaved: c.MoneySaved,
	})
	if err != nil {
		return "", nil, err
	}
	return id, action, nil
}

// RecordActionResult contains the result of recording an action.
type RecordActionResult struct {
	InstallationID string `json:"installationId"`

	// XPAwarded is the XP of the action itself.
	XPAwarded int `json:"xpAwarded"`

	// XPGained includes achievement and challenge rewards.
	XPGained  int  `json:"xpGained"`
	NewLevel  int  `json:"newLevel"`
	LeveledUp bool `json:"leveledUp"`
	Duplicate bool `json:"duplicate"`

	TotalXP       int `json:"totalXp"`
	Streak        int `json:"streak"`
	LongestStreak int `json:"longestStreak"`

	UnlockedAchievements []string `json:"unlockedAchievements"`
	CompletedChallenges  []string `json:"completedChallenges"`

	// Persisted is false when the store was unavailable.
	Persisted bool `json:"persisted"`

	// Events contains domain events generated.
	Events []shared.Event `json:"-"`

	RecordedAt time.Time `json:"recordedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActionHandler handles the RecordActionCommand.
type RecordActionHandler struct {
	runner *session.Runner
	log    *logger.Logger
}

// NewRecordActionHandler creates a new RecordActionHandler.
func NewRecordActionHandler(runner *session.Runner, log *logger.Logger) *RecordActionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordActionHandler{runner: runner, log: log}
}

// Handle executes the record action command.
func (h *RecordActionHandler) Handle(ctx context.Context, cmd RecordActionCommand) (*RecordActionResult, error) {
	id, action, err := cmd.Validate()
	if err != nil {
		return nil, fmt.Errorf("record_action: validation failed: %w", err)
	}

	tracker := h.runner.Tracker()
	key := strings.TrimSpace(cmd.IdempotencyKey)
	entryID := activity.EntryID(uuid.NewString())

	var outcome progress.ActionResult
	res, err := h.runner.Execute(ctx, id, "record_action", func(p *progress.UserProgress, at time.Time) ([]shared.Event, error) {
		r, err := tracker.RecordAction(p, action, key, at)
		if err != nil {
			return nil, err
		}
		outcome = r
		if r.Duplicate {
			return nil, nil
		}

		entry, err := activity.NewEntry(entryID, string(action.Kind()), action.Description(), r.XPAwarded, at)
		if err != nil {
			return nil, err
		}
		p.RecentActivity = activity.Prepend(p.RecentActivity, entry)

		return withCorrelation(r.Events, cmd.CorrelationID), nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_action: %w", err)
	}

	if outcome.LeveledUp {
		h.log.Info("level up",
			logger.InstallationID(id.String()),
			logger.LevelNumber(outcome.NewLevel),
			logger.ActionKind(string(action.Kind())),
		)
	}

	return &RecordActionResult{
		InstallationID:       id.String(),
		XPAwarded:            outcome.XPAwarded,
		XPGained:             outcome.XPGained,
		NewLevel:             res.Progress.Level,
		LeveledUp:            outcome.LeveledUp,
		Duplicate:            outcome.Duplicate,
		TotalXP:              res.Progress.XP.Int(),
		Streak:               res.Progress.Streak,
		LongestStreak:        res.Progress.LongestStreak,
		UnlockedAchievements: nonNil(outcome.UnlockedAchievements),
		CompletedChallenges:  nonNil(outcome.CompletedChallenges),
		Persisted:            res.Persisted,
		Events:               res.Events,
		RecordedAt:           res.Progress.UpdatedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// withCorrelation stamps events with the caller's correlation ID.
func withCorrelation(events []shared.Event, correlationID string) []shared.Event {
	if correlationID == "" {
		return events
	}
	out := make([]shared.Event, 0, len(events))
	for _, e := range events {
		out = append(out, shared.WithCorrelation(e, correlationID))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/scheduler/jobs"
)

// ProgressService defines the operations the CLI runs against a progress store.
type ProgressService interface {
	Progress(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error)
	RecordAction(ctx context.Context, cmd command.RecordActionCommand) (*command.RecordActionResult, error)
	Challenges(ctx context.Context, q query.GetChallengesQuery) (*query.ChallengesDTO, error)
	Achievements(ctx context.Context, q query.GetAchievementsQuery) (*query.AchievementsDTO, error)
	Reset(ctx context.Context, cmd command.ResetProgressCommand) error
	Sweep(ctx context.Context) (*jobs.RolloverSweepStats, error)
	Recommend(ctx context.Context, q query.GetRecommendationsQuery) *query.RecommendationsDTO
}

// ProgressCmd handles progress operations independent of cobra.
type ProgressCmd struct {
	svc ProgressService
	out io.Writer
}

// NewProgressCmd creates a ProgressCmd writing JSON output to out (stdout if nil).
func NewProgressCmd(svc ProgressService, out io.Writer) ProgressCmd {
	if out == nil {
		out = os.Stdout
	}
	return ProgressCmd{svc: svc, out: out}
}

type ProgressInput struct {
	InstallationID string
	Recent         int
	Output         string
}

type RecordInput struct {
	InstallationID string
	Kind           string
	Amount         float64
	CO2Kg          float64
	MoneySaved     float64
	IdempotencyKey string
	Output         string
}

type ChallengesInput struct {
	InstallationID string
	Scope          string
	ActiveOnly     bool
	Output         string
}

type AchievementsInput struct {
	InstallationID string
	UnlockedOnly   bool
	Output         string
}

type ResetInput struct {
	InstallationID string
	SkipConfirm    bool
}

type SweepInput struct {
	Output string
}

type RecommendInput struct {
	InstallationID string
	Title          string
	Brand          string
	Price          string
	URL            string
	Output         string
}

func checkOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	return nil
}

func (c ProgressCmd) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRows(rows pterm.TableData) {
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (c ProgressCmd) Progress(ctx context.Context, in ProgressInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	dto, err := c.svc.Progress(ctx, query.GetProgressQuery{InstallationID: in.InstallationID, RecentActivity: in.Recent})
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(dto)
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Installation", dto.InstallationID})
	rows = append(rows, []string{"Level", fmt.Sprintf("%s %d · %s", dto.LevelIcon, dto.Level, dto.LevelName)})
	rows = append(rows, []string{"XP", strconv.Itoa(dto.XP)})
	if dto.Progress.IsMaxLevel {
		rows = append(rows, []string{"Next Level", "max level reached"})
	} else {
		rows = append(rows, []string{"Next Level", fmt.Sprintf("%.0f%% (%d XP to go)", dto.Progress.Percentage, dto.Progress.XPRemaining)})
	}
	streak := fmt.Sprintf("%d (longest %d)", dto.Streak, dto.LongestStreak)
	if dto.StreakAtRisk {
		streak += " at risk"
	}
	rows = append(rows, []string{"Streak", streak})
	rows = append(rows, []string{"CO2 Saved", formatFloat(dto.TotalCO2Saved) + " kg"})
	rows = append(rows, []string{"Money Saved", "$" + formatFloat(dto.TotalMoneySaved)})
	rows = append(rows, []string{"Items Reused", strconv.Itoa(dto.ItemsReused)})
	rows = append(rows, []string{"Alternatives Viewed", strconv.Itoa(dto.AlternativesViewed)})
	rows = append(rows, []string{"Achievements", fmt.Sprintf("%d/%d", dto.AchievementsUnlocked, dto.AchievementsTotal)})
	rows = append(rows, []string{"Challenges Completed", strconv.Itoa(dto.ChallengesCompleted)})
	if dto.LastActiveDate != "" {
		rows = append(rows, []string{"Last Active", dto.LastActiveDate})
	}
	printRows(rows)

	if len(dto.RecentActivity) > 0 {
		pterm.Println()
		pterm.DefaultSection.Println("Recent Activity")
		activity := pterm.TableData{{"When", "Action", "XP"}}
		for _, e := range dto.RecentActivity {
			activity = append(activity, []string{e.At.Format("2006-01-02 15:04"), e.Message, strconv.Itoa(e.XP)})
		}
		printRows(activity)
	}
	return nil
}

func (c ProgressCmd) Record(ctx context.Context, in RecordInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	if in.Kind == "" {
		return fmt.Errorf("--kind is required (one of %s)", strings.Join(lo.Map(progress.AllActionKinds(), func(k progress.ActionKind, _ int) string {
			return string(k)
		}), ", "))
	}

	res, err := c.svc.RecordAction(ctx, command.RecordActionCommand{
		InstallationID: in.InstallationID,
		Kind:           in.Kind,
		Amount:         in.Amount,
		CO2Kg:          in.CO2Kg,
		MoneySaved:     in.MoneySaved,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(res)
	}

	if res.Duplicate {
		pterm.Info.Printf("Action '%s' was already recorded\n", in.IdempotencyKey)
		return nil
	}
	pterm.Success.Printf("+%d XP (total %d, streak %d)\n", res.XPGained, res.TotalXP, res.Streak)
	if res.LeveledUp {
		pterm.Success.Printf("Level up! Now level %d\n", res.NewLevel)
	}
	for _, id := range res.UnlockedAchievements {
		pterm.Success.Printf("Achievement unlocked: %s\n", id)
	}
	for _, id := range res.CompletedChallenges {
		pterm.Success.Printf("Challenge completed: %s\n", id)
	}
	if !res.Persisted {
		pterm.Warning.Println("Store unavailable: the action is kept in memory only")
	}
	return nil
}

func (c ProgressCmd) Challenges(ctx context.Context, in ChallengesInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	dto, err := c.svc.Challenges(ctx, query.GetChallengesQuery{
		InstallationID: in.InstallationID,
		Scope:          in.Scope,
		ActiveOnly:     in.ActiveOnly,
	})
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(dto)
	}

	all := lo.Flatten([][]progress.Challenge{dto.Daily, dto.Weekly, dto.Special})
	if len(all) == 0 {
		pterm.Info.Println("No challenges found")
		return nil
	}

	rows := pterm.TableData{{"ID", "Name", "Scope", "Progress", "Reward", "Done"}}
	for _, ch := range all {
		rows = append(rows, []string{
			ch.ID,
			ch.Icon + " " + ch.Name,
			string(ch.Scope),
			fmt.Sprintf("%s/%s", formatFloat(ch.CurrentProgress), formatFloat(ch.Target)),
			fmt.Sprintf("%d XP", ch.XPReward),
			lo.Ternary(ch.Completed, "yes", "no"),
		})
	}
	printRows(rows)
	pterm.Info.Printf("%d completed in the current periods\n", dto.Completed)
	return nil
}

func (c ProgressCmd) Achievements(ctx context.Context, in AchievementsInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	dto, err := c.svc.Achievements(ctx, query.GetAchievementsQuery{
		InstallationID: in.InstallationID,
		UnlockedOnly:   in.UnlockedOnly,
	})
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(dto)
	}

	rows := pterm.TableData{{"ID", "Name", "Rarity", "Reward", "Unlocked"}}
	for _, a := range dto.Achievements {
		rows = append(rows, []string{
			a.ID,
			a.Icon + " " + a.Name,
			string(a.Rarity),
			fmt.Sprintf("%d XP", a.XPReward),
			lo.Ternary(a.Unlocked, "yes", "no"),
		})
	}
	printRows(rows)
	pterm.Info.Printf("%d of %d unlocked\n", dto.Unlocked, dto.Total)
	return nil
}

func (c ProgressCmd) Reset(ctx context.Context, in ResetInput) error {
	if !in.SkipConfirm {
		msg := fmt.Sprintf("Are you sure you want to erase all progress of '%s'?", in.InstallationID)
		pterm.DefaultInteractiveConfirm.DefaultText = msg
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Reset cancelled")
			return nil
		}
	}

	if err := c.svc.Reset(ctx, command.ResetProgressCommand{InstallationID: in.InstallationID}); err != nil {
		return err
	}
	pterm.Success.Printf("Progress of '%s' erased\n", in.InstallationID)
	return nil
}

func (c ProgressCmd) Sweep(ctx context.Context, in SweepInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	stats, err := c.svc.Sweep(ctx)
	if stats == nil {
		return err
	}
	if in.Output == "json" {
		if jerr := c.printJSON(sweepSummary(stats)); jerr != nil {
			return jerr
		}
		return err
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Installations", strconv.Itoa(stats.Installations)})
	rows = append(rows, []string{"Reset", strconv.Itoa(stats.Reset)})
	scopes := lo.Keys(stats.ResetByScope)
	slices.Sort(scopes)
	for _, scope := range scopes {
		rows = append(rows, []string{"  " + scope, strconv.Itoa(stats.ResetByScope[scope])})
	}
	rows = append(rows, []string{"Failed", strconv.Itoa(stats.Failed)})
	rows = append(rows, []string{"Duration", stats.Duration.String()})
	printRows(rows)

	for _, e := range stats.Errors {
		pterm.Error.Println(e.Error())
	}
	return err
}

type sweepJSON struct {
	Installations int            `json:"installations"`
	Reset         int            `json:"reset"`
	ResetByScope  map[string]int `json:"resetByScope"`
	Failed        int            `json:"failed"`
	DurationMs    int64          `json:"durationMs"`
	Errors        []string       `json:"errors"`
}

func sweepSummary(s *jobs.RolloverSweepStats) sweepJSON {
	return sweepJSON{
		Installations: s.Installations,
		Reset:         s.Reset,
		ResetByScope:  s.ResetByScope,
		Failed:        s.Failed,
		DurationMs:    s.Duration.Milliseconds(),
		Errors:        lo.Map(s.Errors, func(e error, _ int) string { return e.Error() }),
	}
}

func (c ProgressCmd) Recommend(ctx context.Context, in RecommendInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("--title is required")
	}

	dto := c.svc.Recommend(ctx, query.GetRecommendationsQuery{
		InstallationID: in.InstallationID,
		Product: recommendation.Product{
			Title: in.Title,
			Brand: in.Brand,
			Price: in.Price,
			URL:   in.URL,
		},
	})
	if in.Output == "json" {
		return c.printJSON(dto)
	}

	pterm.Info.Printf("Category: %s · source: %s%s\n", dto.Category, dto.Source, lo.Ternary(dto.Cached, " (cached)", ""))

	rows := pterm.TableData{{"Option", "Price", "Condition", "Savings", "CO2"}}
	for _, o := range dto.SecondhandOptions {
		rows = append(rows, []string{o.Title, o.Price, o.Condition, o.Savings, o.CO2Reduction})
	}
	printRows(rows)

	advice := lo.Compact([]string{
		lo.Ternary(dto.Recommendations.BuySecondhand, "buy secondhand", ""),
		lo.Ternary(dto.Recommendations.RepairInstead, "repair instead", ""),
		lo.Ternary(dto.Recommendations.WaitForSale, "wait for a sale", ""),
	})
	if len(advice) > 0 {
		pterm.Success.Println("Advice: " + strings.Join(advice, ", "))
	}
	return nil
}

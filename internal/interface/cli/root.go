// Package cli implements guardianctl, the operator command line for a Green
// Guardian deployment. It opens the configured store directly, so it works
// with or without a running API server.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/app"
	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "guardianctl",
	Short:         "Inspect and manage Green Guardian progression data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	if driver, _ := cmd.Flags().GetString("storage"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if path, _ := cmd.Flags().GetString("sqlite-path"); path != "" {
		cfg.Storage.SQLitePath = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cliLogger(cmd *cobra.Command, cfg *config.Config) *logger.Logger {
	level := logger.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output: os.Stderr,
		Level:  level,
		Format: logger.ParseFormat(cfg.App.LogFormat),
	})
}

// openService builds the application for one command. Tests replace it.
var openService = func(cmd *cobra.Command) (ProgressService, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cmd.Context(), cfg, cliLogger(cmd, cfg), app.WithoutNotifications())
	if err != nil {
		return nil, nil, err
	}
	return AppService{App: a}, func() { _ = a.Close() }, nil
}

func withService(cmd *cobra.Command, fn func(ProgressCmd) error) error {
	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(NewProgressCmd(svc, cmd.OutOrStdout()))
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

var progressCmd = &cobra.Command{
	Use:   "progress <installation-id>",
	Short: "Show level, streak and savings of an installation",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgress,
}

var recordCmd = &cobra.Command{
	Use:   "record <installation-id>",
	Short: "Record a sustainable action",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

var challengesCmd = &cobra.Command{
	Use:   "challenges <installation-id>",
	Short: "List current daily, weekly and special challenges",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallenges,
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements <installation-id>",
	Short: "List achievements and which are unlocked",
	Args:  cobra.ExactArgs(1),
	RunE:  runAchievements,
}

var resetCmd = &cobra.Command{
	Use:   "reset <installation-id>",
	Short: "Erase all progress of an installation",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Apply the daily and weekly challenge rollover to every stored installation",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Fetch eco-friendly alternatives for a product",
	Args:  cobra.NoArgs,
	RunE:  runRecommend,
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Print the bcrypt hash of an API key for AUTH_API_KEY_HASHES",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHashKey,
}

var tokenCmd = &cobra.Command{
	Use:   "token <installation-id>",
	Short: "Issue a bearer token scoped to one installation",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", ".env", "Dotenv file to load before reading the environment")
	pf.String("storage", "", "Override STORAGE_DRIVER (memory, sqlite, postgres, redis)")
	pf.String("sqlite-path", "", "Override STORAGE_SQLITE_PATH")
	pf.BoolP("verbose", "v", false, "Log debug output to stderr")

	progressCmd.Flags().StringP("output", "o", "", "Output format (json)")
	progressCmd.Flags().Int("recent", 5, "Number of recent activity entries to show")

	recordCmd.Flags().StringP("output", "o", "", "Output format (json)")
	recordCmd.Flags().String("kind", "", "Action kind, e.g. chose_secondhand")
	recordCmd.Flags().Float64("amount", 0, "Kilograms for saved_emissions, dollars for saved_money")
	recordCmd.Flags().Float64("co2", 0, "CO2 saved in kg (chose_secondhand, chose_eco_shipping)")
	recordCmd.Flags().Float64("money", 0, "Money saved in dollars (chose_secondhand)")
	recordCmd.Flags().String("idempotency-key", "", "Makes repeated calls a no-op")
	_ = recordCmd.MarkFlagRequired("kind")

	challengesCmd.Flags().StringP("output", "o", "", "Output format (json)")
	challengesCmd.Flags().String("scope", "", "Only daily, weekly or special")
	challengesCmd.Flags().Bool("active", false, "Hide completed challenges")

	achievementsCmd.Flags().StringP("output", "o", "", "Output format (json)")
	achievementsCmd.Flags().Bool("unlocked", false, "Only unlocked achievements")

	resetCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	sweepCmd.Flags().StringP("output", "o", "", "Output format (json)")

	recommendCmd.Flags().StringP("output", "o", "", "Output format (json)")
	recommendCmd.Flags().String("title", "", "Product title")
	recommendCmd.Flags().String("brand", "", "Product brand")
	recommendCmd.Flags().String("price", "", "Product price, e.g. $999")
	recommendCmd.Flags().String("url", "", "Product page URL")
	recommendCmd.Flags().String("installation", "", "Installation for feature rollout")
	_ = recommendCmd.MarkFlagRequired("title")

	hashKeyCmd.Flags().Int("cost", 0, "bcrypt cost (default 10)")

	tokenCmd.Flags().StringP("output", "o", "", "Output format (json)")

	rootCmd.AddCommand(progressCmd, recordCmd, challengesCmd, achievementsCmd, resetCmd,
		sweepCmd, recommendCmd, hashKeyCmd, tokenCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	recent, _ := cmd.Flags().GetInt("recent")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Progress(cmd.Context(), ProgressInput{InstallationID: args[0], Recent: recent, Output: output})
	})
}

func runRecord(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	kind, _ := cmd.Flags().GetString("kind")
	amount, _ := cmd.Flags().GetFloat64("amount")
	co2, _ := cmd.Flags().GetFloat64("co2")
	money, _ := cmd.Flags().GetFloat64("money")
	key, _ := cmd.Flags().GetString("idempotency-key")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Record(cmd.Context(), RecordInput{
			InstallationID: args[0],
			Kind:           kind,
			Amount:         amount,
			CO2Kg:          co2,
			MoneySaved:     money,
			IdempotencyKey: key,
			Output:         output,
		})
	})
}

func runChallenges(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	scope, _ := cmd.Flags().GetString("scope")
	active, _ := cmd.Flags().GetBool("active")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Challenges(cmd.Context(), ChallengesInput{InstallationID: args[0], Scope: scope, ActiveOnly: active, Output: output})
	})
}

func runAchievements(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	unlocked, _ := cmd.Flags().GetBool("unlocked")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Achievements(cmd.Context(), AchievementsInput{InstallationID: args[0], UnlockedOnly: unlocked, Output: output})
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	skip, _ := cmd.Flags().GetBool("yes")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Reset(cmd.Context(), ResetInput{InstallationID: args[0], SkipConfirm: skip})
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Sweep(cmd.Context(), SweepInput{Output: output})
	})
}

func runRecommend(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	title, _ := cmd.Flags().GetString("title")
	brand, _ := cmd.Flags().GetString("brand")
	price, _ := cmd.Flags().GetString("price")
	url, _ := cmd.Flags().GetString("url")
	installation, _ := cmd.Flags().GetString("installation")
	return withService(cmd, func(c ProgressCmd) error {
		return c.Recommend(cmd.Context(), RecommendInput{
			InstallationID: installation,
			Title:          title,
			Brand:          brand,
			Price:          price,
			URL:            url,
			Output:         output,
		})
	})
}

func runHashKey(cmd *cobra.Command, args []string) error {
	cost, _ := cmd.Flags().GetInt("cost")
	in := HashKeyInput{Cost: cost}
	if len(args) == 1 {
		in.Key = args[0]
	}
	return AuthCmd{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}.HashKey(in)
}

func runToken(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET is not configured")
	}

	auth := handlers.NewAuthenticator(handlers.AuthConfig{
		APIKeyHeader: cfg.Auth.APIKeyHeader,
		APIKeyHashes: cfg.Auth.APIKeyHashes,
		TokenSecret:  cfg.Auth.TokenSecret,
		TokenTTL:     cfg.Auth.TokenTTL,
		TokenIssuer:  cfg.Auth.TokenIssuer,
	})
	return AuthCmd{auth: auth, out: cmd.OutOrStdout()}.Token(TokenInput{InstallationID: args[0], Output: output})
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/6ofHertz/aelpher-control/internal/config"
	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/export"
	"github.com/6ofHertz/aelpher-control/internal/notify"
	"github.com/6ofHertz/aelpher-control/internal/recompute"
	"github.com/6ofHertz/aelpher-control/internal/scoring"
	"github.com/6ofHertz/aelpher-control/internal/store"
	"github.com/6ofHertz/aelpher-control/tui"
	"github.com/6ofHertz/aelpher-control/web/api"
)

var (
	logDetails     string
	logDuration    int
	itemDesc       string
	itemGap        int
	itemEarlyBonus bool
	reflectContext string
	exportFormat   string
	exportOut      string
	servePort      int
)

func init() {
	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show both theaters and the overload risk",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// log command
	logCmd := &cobra.Command{
		Use:   "log ARM ACTION",
		Short: "Record an activity log entry",
		Args:  cobra.ExactArgs(2),
		RunE:  runLog,
	}
	logCmd.Flags().StringVar(&logDetails, "details", "", "free-form details")
	logCmd.Flags().IntVar(&logDuration, "duration", 0, "duration in minutes")
	rootCmd.AddCommand(logCmd)

	// nba command group
	nbaCmd := &cobra.Command{
		Use:   "nba",
		Short: "Manage next-best-action items",
	}

	nbaAddCmd := &cobra.Command{
		Use:   "add ARM TITLE",
		Short: "Add an action item to a theater's queue",
		Args:  cobra.ExactArgs(2),
		RunE:  runNBAAdd,
	}
	nbaAddCmd.Flags().StringVar(&itemDesc, "description", "", "item description")
	nbaAddCmd.Flags().IntVar(&itemGap, "gap", 0, "importance gap (0-5)")
	nbaAddCmd.Flags().BoolVar(&itemEarlyBonus, "early-bonus", false, "grant the early progress bonus")
	nbaCmd.AddCommand(nbaAddCmd)

	nbaCmd.AddCommand(&cobra.Command{
		Use:   "list ARM",
		Short: "List a theater's queue ranked by score",
		Args:  cobra.ExactArgs(1),
		RunE:  runNBAList,
	})

	nbaCmd.AddCommand(&cobra.Command{
		Use:   "select ARM ITEM_ID",
		Short: "Manually select and lock an item",
		Args:  cobra.ExactArgs(2),
		RunE:  runNBASelect,
	})

	nbaCmd.AddCommand(&cobra.Command{
		Use:   "auto ARM",
		Short: "Release the manual lock and return to automatic selection",
		Args:  cobra.ExactArgs(1),
		RunE:  runNBAAuto,
	})
	rootCmd.AddCommand(nbaCmd)

	// reflect command group
	reflectCmd := &cobra.Command{
		Use:   "reflect",
		Short: "Record and review progress reflections",
	}

	reflectAddCmd := &cobra.Command{
		Use:   "add ARM EVIDENCE",
		Short: "Record a progress reflection",
		Args:  cobra.ExactArgs(2),
		RunE:  runReflectAdd,
	}
	reflectAddCmd.Flags().StringVar(&reflectContext, "context", "", "surrounding context")
	reflectCmd.AddCommand(reflectAddCmd)

	reflectCmd.AddCommand(&cobra.Command{
		Use:   "list ARM",
		Short: "List a theater's reflections, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runReflectList,
	})
	rootCmd.AddCommand(reflectCmd)

	// set command group
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Adjust a theater's energy allocation or total progress",
	}
	setCmd.AddCommand(&cobra.Command{
		Use:   "energy ARM PCT",
		Short: "Set a theater's energy allocation (0-100)",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetEnergy,
	})
	setCmd.AddCommand(&cobra.Command{
		Use:   "progress ARM PCT",
		Short: "Set a theater's total progress (0-100)",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetProgress,
	})
	rootCmd.AddCommand(setCmd)

	// recompute command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "recompute",
		Short: "Run a recompute pass and print the resulting metrics",
		RunE:  runRecompute,
	})

	// export command
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a full dashboard snapshot",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json or yaml)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (defaults to stdout)")
	rootCmd.AddCommand(exportCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web API with the recompute scheduler",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// tui command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Launch the TUI dashboard",
		RunE:  runTUI,
	})
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func openStore() (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	theaters, err := st.Theaters()
	if err != nil {
		return err
	}
	metrics, err := st.Metrics()
	if err != nil {
		return err
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARM\tSTATUS\tNEXT BEST ACTION\tQUEUE\tPROGRESS\tENERGY\tLAST ACTIVITY")
	for _, t := range theaters {
		next := "-"
		if top := scoring.Top(t.Queue, now); top != nil {
			next = top.Title
			if top.Pinned() {
				next += " (pinned)"
			}
		}
		lastActivity := "never"
		if !t.LastActivity.IsZero() {
			lastActivity = humanize.Time(t.LastActivity)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d%%\t%d%%\t%s\n",
			t.Arm, t.Status, next, len(t.Queue), t.TotalProgress, t.EnergyAllocation, lastActivity)
	}
	w.Flush()

	fmt.Printf("\nOverload risk: %d/100 | Combined progress: %d%%",
		metrics.OverloadRisk, metrics.CombinedProgress)
	if !metrics.LastSync.IsZero() {
		fmt.Printf(" | Last sync: %s", humanize.Time(metrics.LastSync))
	}
	fmt.Println()

	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}
	if logDuration < 0 {
		return fmt.Errorf("duration must be non-negative")
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.AddLog(arm, args[1], logDetails, logDuration)
	if err != nil {
		return err
	}

	if err := recomputeAfterMutation(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Logged %q to %s (%s)\n", entry.Action, arm, entry.ID)
	return nil
}

func runNBAAdd(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}
	if itemGap < 0 || itemGap > domain.MaxGap {
		return fmt.Errorf("gap must be between 0 and %d", domain.MaxGap)
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	item, err := st.AddItem(arm, args[1], itemDesc, itemGap, itemEarlyBonus)
	if err != nil {
		return err
	}

	if err := recomputeAfterMutation(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Added %q to %s queue (%s)\n", item.Title, arm, item.ID)
	return nil
}

func runNBAList(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	queue, err := st.Queue(arm)
	if err != nil {
		return err
	}
	ranked := scoring.Rank(queue, time.Now())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSCORE\tSTALE\tGAP\tPINNED")
	for _, item := range ranked {
		pinned := "-"
		if item.Pinned() {
			pinned = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1fd\t%d\t%s\n",
			item.ID, item.Title, item.Score, item.StaleDays, item.Gap, pinned)
	}
	w.Flush()

	return nil
}

func runNBASelect(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SelectItem(arm, args[1], true); err != nil {
		return err
	}

	if err := recomputeAfterMutation(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Selected and locked %s on %s\n", args[1], arm)
	return nil
}

func runNBAAuto(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ClearManualSelection(arm); err != nil {
		return err
	}

	if err := recomputeAfterMutation(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Released manual lock on %s, back to automatic selection\n", arm)
	return nil
}

func runReflectAdd(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reflection, err := st.AddReflection(arm, args[1], reflectContext)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded reflection for %s (%s)\n", arm, reflection.ID)
	return nil
}

func runReflectList(cmd *cobra.Command, args []string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reflections, err := st.Reflections(arm)
	if err != nil {
		return err
	}

	if len(reflections) == 0 {
		fmt.Printf("No reflections for %s\n", arm)
		return nil
	}

	for _, r := range reflections {
		fmt.Printf("%s  %s", r.Timestamp.Format("2006-01-02 15:04"), r.Evidence)
		if r.Context != "" {
			fmt.Printf(" (%s)", r.Context)
		}
		fmt.Println()
	}

	return nil
}

func runSetEnergy(cmd *cobra.Command, args []string) error {
	return runSetPercent(args, func(st *store.Store, arm domain.ArmType, pct int) error {
		return st.SetEnergyAllocation(arm, pct)
	}, "energy allocation")
}

func runSetProgress(cmd *cobra.Command, args []string) error {
	return runSetPercent(args, func(st *store.Store, arm domain.ArmType, pct int) error {
		return st.SetProgress(arm, pct)
	}, "progress")
}

func runSetPercent(args []string, set func(*store.Store, domain.ArmType, int) error, what string) error {
	arm, err := domain.ParseArm(args[0])
	if err != nil {
		return err
	}
	pct, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid percentage %q", args[1])
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("percentage must be between 0 and 100")
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := set(st, arm, pct); err != nil {
		return err
	}

	if err := recomputeAfterMutation(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Set %s %s to %d%%\n", arm, what, pct)
	return nil
}

func runRecompute(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	engine := recompute.New(st, buildNotifier(cfg), newLogger(cfg.General.LogLevel))
	engine.SetRiskThreshold(cfg.Recompute.RiskAlertThreshold)

	result, err := engine.Recompute(time.Now())
	if err != nil {
		return err
	}

	for _, t := range result.Theaters {
		current := "-"
		if item := t.CurrentItem(); item != nil {
			current = item.Title
		}
		fmt.Printf("%s: %s | current: %s\n", t.Arm, t.Status, current)
	}
	fmt.Printf("Overload risk: %d/100 | Combined progress: %d%%\n",
		result.Metrics.OverloadRisk, result.Metrics.CombinedProgress)

	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := export.Build(st, time.Now())
	if err != nil {
		return err
	}

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if err := snap.Write(out, strings.ToLower(exportFormat)); err != nil {
		return err
	}

	if exportOut != "" {
		fmt.Printf("Exported snapshot to %s\n", exportOut)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.General.LogLevel)

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := recompute.New(st, buildNotifier(cfg), logger)
	engine.SetRiskThreshold(cfg.Recompute.RiskAlertThreshold)

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)

	server := api.NewServer(st, engine, addr, logger)
	engine.SetEventSink(func(eventType string, data any) {
		server.Broadcast(api.Event{Type: eventType, Data: data})
	})

	sched, err := recompute.NewScheduler(engine, cfg.Recompute.Interval(), cfg.Recompute.DigestCron, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hot-reload the risk threshold when the config file changes
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	watcher, err := config.NewWatcher(cfgPath, func(updated *config.Config) {
		engine.SetRiskThreshold(updated.Recompute.RiskAlertThreshold)
		logger.Info().Msg("config reloaded")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher disabled")
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})

	logger.Info().Str("addr", addr).Msg("aelpher control running")
	return g.Wait()
}

func runTUI(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// One recompute so the TUI opens on fresh statuses and metrics
	engine := recompute.New(st, notify.NoopNotifier{}, zerolog.Nop())
	engine.SetRiskThreshold(cfg.Recompute.RiskAlertThreshold)
	if _, err := engine.Recompute(time.Now()); err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(st), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

// recomputeAfterMutation refreshes derived state so the next read reflects
// the write that just happened
func recomputeAfterMutation(st *store.Store, cfg *config.Config) error {
	engine := recompute.New(st, notify.NoopNotifier{}, zerolog.Nop())
	engine.SetRiskThreshold(cfg.Recompute.RiskAlertThreshold)
	_, err := engine.Recompute(time.Now())
	return err
}

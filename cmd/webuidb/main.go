package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/webui-tools/webuidb/internal/chatlog"
	"github.com/webui-tools/webuidb/internal/compliance"
	"github.com/webui-tools/webuidb/internal/config"
	"github.com/webui-tools/webuidb/internal/export"
	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/report"
	"github.com/webui-tools/webuidb/internal/store"
	"github.com/webui-tools/webuidb/internal/timeline"
	"github.com/webui-tools/webuidb/internal/verify"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	dbPath     string
	jsonOutput bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webuidb",
		Short: "Open WebUI database analyzer",
		Long: `Webuidb analyzes an Open WebUI webui.db SQLite database:
chat volume, user activity, model usage, feedback compliance,
and reconciliation against exported feedback data.

The database is opened read-only; nothing is ever written to it.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			log.SetOutput(os.Stderr)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "webui.db", "Path to webui.db")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("webuidb %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(chatsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB opens the database read-only or exits. Access failures are fatal
// with no partial report.
func openDB() *store.DB {
	db, err := store.Open(dbPath)
	if err != nil {
		fatal(err)
	}
	return db
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(fmt.Errorf("failed to marshal output: %w", err))
	}
	fmt.Println(string(data))
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	return cfg
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Overview of tables, schema, and sanity checks",
		Run: func(cmd *cobra.Command, args []string) {
			db := openDB()
			defer db.Close()

			tables, err := db.Tables()
			if err != nil {
				fatal(err)
			}
			schema, err := db.Schema()
			if err != nil {
				fatal(err)
			}
			led := quality.NewLedger()
			checks, err := db.SanityChecks(led)
			if err != nil {
				fatal(err)
			}

			if jsonOutput {
				printJSON(map[string]any{
					"database": db.Path(),
					"tables":   tables,
					"schema":   schema,
					"checks":   checks,
				})
				return
			}
			report.Summary(os.Stdout, db.Path(), db.SizeBytes(), tables, schema, checks)
			report.QualityWarnings(os.Stdout, led)
		},
	}
}

func chatsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Chat volume analysis",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if !cmd.Flags().Changed("limit") {
				limit = cfg.UserLimit
			}

			db := openDB()
			defer db.Close()

			vol, err := db.Volume()
			if err != nil {
				fatal(err)
			}
			perUser, err := db.ChatsPerUser(limit)
			if err != nil {
				fatal(err)
			}
			chats, err := db.Chats()
			if err != nil {
				fatal(err)
			}

			led := quality.NewLedger()
			msgs, tally := chatlog.CountMessages(chats, led)

			if jsonOutput {
				printJSON(map[string]any{
					"volume":    vol,
					"per_user":  perUser,
					"messages":  msgs,
					"parse":     tally,
					"anomalies": led.Entries(quality.JSONParseError),
				})
				return
			}
			report.ChatVolume(os.Stdout, vol, perUser, msgs, tally)
			report.QualityWarnings(os.Stdout, led)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max users listed")
	return cmd
}

func usersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User statistics",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if !cmd.Flags().Changed("limit") {
				limit = cfg.UserLimit
			}

			db := openDB()
			defer db.Close()

			users, err := db.Users()
			if err != nil {
				fatal(err)
			}
			roles, err := db.UsersByRole()
			if err != nil {
				fatal(err)
			}
			activity, err := db.RecentActivity(limit)
			if err != nil {
				fatal(err)
			}

			if jsonOutput {
				printJSON(map[string]any{
					"total":    len(users),
					"roles":    roles,
					"activity": activity,
				})
				return
			}
			report.Users(os.Stdout, len(users), roles, activity)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 15, "Max users listed")
	return cmd
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Chat activity over time",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			db := openDB()
			defer db.Close()

			chats, err := db.Chats()
			if err != nil {
				fatal(err)
			}
			created := make([]int64, 0, len(chats))
			for _, c := range chats {
				created = append(created, c.CreatedAt)
			}
			activity := timeline.Build(created)

			if jsonOutput {
				printJSON(activity)
				return
			}
			report.Timeline(os.Stdout, activity, cfg.RecentDays)
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Model usage statistics",
		Run: func(cmd *cobra.Command, args []string) {
			db := openDB()
			defer db.Close()

			chats, err := db.Chats()
			if err != nil {
				fatal(err)
			}
			led := quality.NewLedger()
			counts, tally := chatlog.ModelUsage(chats, led)

			if jsonOutput {
				printJSON(map[string]any{
					"models": counts,
					"parse":  tally,
				})
				return
			}
			report.Models(os.Stdout, counts, tally)
		},
	}
}

func feedbackCmd() *cobra.Command {
	var minChats int
	var allUsers bool
	var userTrends bool
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Feedback compliance analysis",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if !cmd.Flags().Changed("min-chats") {
				minChats = cfg.MinChats
			}
			if allUsers {
				minChats = 0
			}

			db := openDB()
			defer db.Close()

			chats, err := db.Chats()
			if err != nil {
				fatal(err)
			}
			feedback, err := db.FeedbackRows()
			if err != nil {
				fatal(err)
			}
			log.WithFields(log.Fields{"chats": len(chats), "feedback": len(feedback)}).Debug("loaded rows")

			led := quality.NewLedger()
			agg := compliance.Aggregate(chats, feedback, led)

			if jsonOutput {
				users := compliance.PrepareUsers(agg.Users(), minChats)
				printJSON(map[string]any{
					"global":  agg.Global(),
					"monthly": agg.Months(),
					"users":   users,
					"quality": map[string]any{
						"json_parse_errors":     led.Entries(quality.JSONParseError),
						"unknown_rating_values": led.Entries(quality.UnknownRatingValue),
					},
				})
				return
			}
			report.Feedback(os.Stdout, agg, led, report.FeedbackOptions{
				MinChats:   minChats,
				UserTrends: userTrends,
			})
		},
	}
	cmd.Flags().IntVar(&minChats, "min-chats", 0, "Hide users with fewer chats")
	cmd.Flags().BoolVar(&allUsers, "all-users", false, "Show every user regardless of chat count")
	cmd.Flags().BoolVar(&userTrends, "user-trends", false, "Show each user's monthly trend")
	return cmd
}

func verifyCmd() *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile database feedback metrics against an export",
		Long: `Verify computes five metrics (total_records, thumbs_up, thumbs_down,
other_or_null, unique_chat_ids) from the live feedback table and from an
exported feedback JSON file, using the same rating normalization for both,
and reports a per-metric exact-equality verdict. Exits 1 on any mismatch.`,
		Run: func(cmd *cobra.Command, args []string) {
			db := openDB()
			defer db.Close()

			feedback, err := db.FeedbackRows()
			if err != nil {
				fatal(err)
			}
			exportRecords, err := export.ReadFeedbackExport(exportPath)
			if err != nil {
				fatal(err)
			}

			led := quality.NewLedger()
			dbMetrics := verify.FromRecords(verify.RecordsFromStore(feedback, led), "feedback.data", led)

			records := make([]verify.Record, 0, len(exportRecords))
			for _, r := range exportRecords {
				records = append(records, verify.NewRecord(r.ChatID, r.Rating))
			}
			exportMetrics := verify.FromRecords(records, "export.rating", led)

			comparisons := verify.Compare(exportMetrics, dbMetrics)

			if jsonOutput {
				printJSON(map[string]any{
					"comparisons": comparisons,
					"all_match":   verify.AllMatch(comparisons),
				})
			} else {
				report.Verify(os.Stdout, comparisons)
				report.QualityWarnings(os.Stdout, led)
			}

			if !verify.AllMatch(comparisons) {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "Path to exported feedback JSON (required)")
	_ = cmd.MarkFlagRequired("export")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective display-policy settings",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if jsonOutput {
				printJSON(cfg)
				return
			}
			dir, err := config.GetConfigDir()
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Config file: %s\n", filepath.Join(dir, "config.yaml"))
			fmt.Printf("  user_limit: %d\n", cfg.UserLimit)
			fmt.Printf("  min_chats: %d\n", cfg.MinChats)
			fmt.Printf("  recent_days: %d\n", cfg.RecentDays)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the config file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if err := cfg.Save(); err != nil {
				fatal(err)
			}
			dir, err := config.GetConfigDir()
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Wrote %s\n", filepath.Join(dir, "config.yaml"))
		},
	})

	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [output.json]",
		Short: "Export chat data to JSON",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			output := "chats_export.json"
			if len(args) > 0 {
				output = args[0]
			}

			db := openDB()
			defer db.Close()

			chats, err := db.Chats()
			if err != nil {
				fatal(err)
			}
			users, err := db.Users()
			if err != nil {
				fatal(err)
			}

			env, err := export.WriteChats(output, chats, users)
			if err != nil {
				fatal(err)
			}

			if jsonOutput {
				printJSON(map[string]any{
					"export_id": env.ExportID,
					"chats":     env.ChatCount,
					"path":      output,
				})
			} else {
				fmt.Printf("Exported %d chats to %s (export id %s)\n", env.ChatCount, output, env.ExportID)
			}
		},
	}
}

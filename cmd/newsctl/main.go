package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mm-osint/newswire/internal/collector"
	"github.com/mm-osint/newswire/internal/config"
	"github.com/mm-osint/newswire/internal/database"
	"github.com/mm-osint/newswire/internal/migrator"
	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
	"github.com/mm-osint/newswire/internal/telegram"
	"github.com/mm-osint/newswire/migrations"
)

func main() {
	root := &cobra.Command{
		Use:   "newsctl",
		Short: "Manage collection channels and exclusion rules",
	}
	root.AddCommand(channelsCmd(), rulesCmd(), importCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// openDB connects and brings the schema current, so newsctl works against a
// fresh database before any service has started.
func openDB(ctx context.Context) (*database.DB, *config.Config) {
	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("connect to database: %v", err)
	}
	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		fatal("create migrator: %v", err)
	}
	if err := mig.Up(ctx, db.Pool); err != nil {
		fatal("run migrations: %v", err)
	}
	return db, cfg
}

// openResolver brings up the telegram client for commands that register
// channels. Needs the session stored by tg-auth.
func openResolver(ctx context.Context, cfg *config.Config, db *database.DB) *telegram.Client {
	if cfg.TGApiID == 0 || cfg.TGApiHash == "" {
		fatal("TG_API_ID and TG_API_HASH must be set")
	}
	manager := telegram.NewManager(cfg, db.GORM)
	if err := manager.Init(ctx); err != nil {
		fatal("telegram: %v", err)
	}
	if manager.GetStatus() != telegram.StatusReady {
		fatal("no telegram session in the database, run tg-auth first")
	}
	client := telegram.NewClient(manager)
	client.SetRateLimit(cfg.RequestsPerSecond, 1)
	return client
}

func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage collection channels",
	}
	cmd.AddCommand(
		channelsListCmd(),
		channelsAddCmd(),
		channelsToggleCmd("enable", true),
		channelsToggleCmd("disable", false),
	)
	return cmd
}

func channelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered channels",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			db, _ := openDB(ctx)
			defer db.Close()

			channels, err := repository.NewChannelsRepository(db.Pool).GetAllWithCounts(ctx)
			if err != nil {
				fatal("list channels: %v", err)
			}
			if len(channels) == 0 {
				fmt.Println("no channels registered")
				return
			}

			fmt.Printf("%-14s %-22s %-32s %-12s %-7s %s\n",
				"TELEGRAM ID", "NAME", "DISPLAY NAME", "CATEGORY", "ACTIVE", "MESSAGES")
			for _, ch := range channels {
				fmt.Printf("%-14d %-22s %-32s %-12s %-7s %d\n",
					ch.TelegramChannelID, ch.Name, orDash(ch.DisplayName),
					orDash(ch.Category), yesNo(ch.IsActive), ch.MessageCount)
			}
			fmt.Printf("\ntotal: %d channels\n", len(channels))
		},
	}
}

func channelsAddCmd() *cobra.Command {
	var displayName, category string
	var paused bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a channel, resolving its id and title from Telegram",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := collector.CreateChannelRequest{
				Name:        args[0],
				DisplayName: optional(displayName),
				Category:    optional(category),
			}
			if err := req.Validate(); err != nil {
				fatal("%v", err)
			}

			ctx := context.Background()
			db, cfg := openDB(ctx)
			defer db.Close()
			client := openResolver(ctx, cfg, db)
			defer client.Close()

			resolved, err := client.ResolveChannel(ctx, req.Name)
			if err != nil {
				fatal("cannot resolve @%s: %v", req.Name, err)
			}

			ch := &models.Channel{
				TelegramChannelID: resolved.ID,
				Name:              req.Name,
				DisplayName:       req.DisplayName,
				Category:          req.Category,
				IsActive:          !paused,
			}
			if ch.DisplayName == nil {
				ch.DisplayName = optional(resolved.Title)
			}

			if err := repository.NewChannelsRepository(db.Pool).Create(ctx, ch); err != nil {
				fatal("register channel: %v", err)
			}

			fmt.Printf("✓ registered @%s\n", ch.Name)
			fmt.Printf("   telegram id:  %d\n", ch.TelegramChannelID)
			fmt.Printf("   display name: %s\n", orDash(ch.DisplayName))
			if ch.Category != nil {
				fmt.Printf("   category:     %s\n", *ch.Category)
			}
			if paused {
				fmt.Println("   registered paused, enable with: newsctl channels enable " + ch.Name)
			}
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "override the title fetched from telegram")
	cmd.Flags().StringVar(&category, "category", "", "channel category")
	cmd.Flags().BoolVar(&paused, "paused", false, "register without activating")
	return cmd
}

func channelsToggleCmd(use string, active bool) *cobra.Command {
	short := "Resume collecting a channel"
	if !active {
		short = "Stop collecting a channel without losing its history"
	}
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")

			ctx := context.Background()
			db, _ := openDB(ctx)
			defer db.Close()

			repo := repository.NewChannelsRepository(db.Pool)
			ch, err := repo.GetByName(ctx, name)
			if err != nil {
				fatal("load channel: %v", err)
			}
			if ch == nil {
				fatal("channel not registered: %s", name)
			}
			if err := repo.SetActive(ctx, ch.TelegramChannelID, active); err != nil {
				fatal("update channel: %v", err)
			}
			fmt.Printf("✓ %sd @%s\n", use, name)
		},
	}
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage exclusion rules",
	}
	cmd.AddCommand(
		rulesListCmd(),
		rulesAddCmd(),
		rulesToggleCmd("enable", true),
		rulesToggleCmd("disable", false),
	)
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List exclusion rules",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			db, _ := openDB(ctx)
			defer db.Close()

			rules, err := repository.NewRulesRepository(db.Pool).GetAll(ctx)
			if err != nil {
				fatal("list rules: %v", err)
			}
			if len(rules) == 0 {
				fmt.Println("no exclusion rules defined")
				return
			}

			fmt.Printf("%-5s %-10s %-6s %-7s %s\n", "ID", "TYPE", "CASE", "ACTIVE", "PATTERN")
			for _, r := range rules {
				pattern := r.Pattern
				if r.Description != nil && *r.Description != "" {
					pattern += "  (" + *r.Description + ")"
				}
				fmt.Printf("%-5d %-10s %-6s %-7s %s\n",
					r.ID, r.RuleType, yesNo(r.IsCaseSensitive), yesNo(r.IsActive), pattern)
			}
			fmt.Printf("\ntotal: %d rules\n", len(rules))
		},
	}
}

func rulesAddCmd() *cobra.Command {
	var ruleType, description string
	var caseSensitive bool

	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add an exclusion rule",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := collector.CreateRuleRequest{
				RuleType:        ruleType,
				Pattern:         args[0],
				IsCaseSensitive: caseSensitive,
				Description:     optional(description),
			}
			if err := req.Validate(); err != nil {
				fatal("%v", err)
			}

			ctx := context.Background()
			db, _ := openDB(ctx)
			defer db.Close()

			rule := &models.ExclusionRule{
				RuleType:        models.RuleType(req.RuleType),
				Pattern:         req.Pattern,
				IsCaseSensitive: req.IsCaseSensitive,
				IsActive:        true,
				Description:     req.Description,
			}
			if err := repository.NewRulesRepository(db.Pool).Create(ctx, rule); err != nil {
				fatal("create rule: %v", err)
			}
			fmt.Printf("✓ rule %d: %s %q\n", rule.ID, rule.RuleType, rule.Pattern)
		},
	}

	cmd.Flags().StringVar(&ruleType, "type", "contains", "match mode: exact or contains")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "match case exactly")
	cmd.Flags().StringVar(&description, "description", "", "why this rule exists")
	return cmd
}

func rulesToggleCmd(use string, active bool) *cobra.Command {
	short := "Re-enable an exclusion rule"
	if !active {
		short = "Disable an exclusion rule, keeping it for the record"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				fatal("rule id must be a number: %s", args[0])
			}

			ctx := context.Background()
			db, _ := openDB(ctx)
			defer db.Close()

			if err := repository.NewRulesRepository(db.Pool).SetActive(ctx, id, active); err != nil {
				fatal("update rule: %v", err)
			}
			fmt.Printf("✓ %sd rule %d\n", use, id)
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Register every channel from a YAML seed file",
		Long: "Register every channel from a YAML seed file, resolving each against\n" +
			"Telegram. Import is idempotent: channels that already exist are updated\n" +
			"in place.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			seed, err := loadSeed(args[0])
			if err != nil {
				fatal("%s: %v", args[0], err)
			}

			ctx := context.Background()
			db, cfg := openDB(ctx)
			defer db.Close()
			client := openResolver(ctx, cfg, db)
			defer client.Close()

			repo := repository.NewChannelsRepository(db.Pool)
			failed := 0
			for _, sc := range seed.Channels {
				resolved, err := client.ResolveChannel(ctx, sc.Name)
				if err != nil {
					fmt.Printf("❌ @%s: %v\n", sc.Name, err)
					failed++
					continue
				}

				ch := &models.Channel{
					TelegramChannelID: resolved.ID,
					Name:              sc.Name,
					DisplayName:       optional(sc.DisplayName),
					Category:          optional(sc.Category),
					IsActive:          !sc.Paused,
				}
				if ch.DisplayName == nil {
					ch.DisplayName = optional(resolved.Title)
				}

				if err := repo.Create(ctx, ch); err != nil {
					fmt.Printf("❌ @%s: %v\n", sc.Name, err)
					failed++
					continue
				}
				fmt.Printf("✓ @%s (id %d)\n", sc.Name, resolved.ID)
			}

			fmt.Printf("\n%d of %d channels registered\n", len(seed.Channels)-failed, len(seed.Channels))
			if failed > 0 {
				os.Exit(1)
			}
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check seed files without touching the database",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			failed := false
			for _, path := range args {
				seed, err := loadSeed(path)
				if err != nil {
					fmt.Printf("❌ %s: %v\n", path, err)
					failed = true
					continue
				}
				fmt.Printf("✅ %s: %d channels\n", path, len(seed.Channels))
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

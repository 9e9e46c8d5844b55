package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/duesjobs/duesjobs/internal/audit"
	"github.com/duesjobs/duesjobs/internal/config"
	"github.com/duesjobs/duesjobs/internal/matcher"
	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/normalizer"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse a source's jobs against a user's profile (TUI)",
	Long:  "Pick a source and a stored user profile, then compare every normalized job with the ones that profile matches.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Any log output while the TUI is up corrupts the display.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))

	var sources []config.SourceConfig
	var labels []string
	for _, s := range cfg.Sources {
		if s.Enabled {
			sources = append(sources, s)
			labels = append(labels, fmt.Sprintf("%s (%s)", s.Name, s.Type))
		}
	}
	if len(sources) == 0 {
		fmt.Println("No enabled sources in config.")
		return nil
	}

	profiles := loadProfiles(cfg)
	httpClient := newHTTPClient()

	for {
		choice, err := audit.RunPicker("Audit: select a source", labels)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if choice < 0 {
			return nil
		}
		src := sources[choice]

		profile, ok, err := pickProfile(profiles)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if !ok {
			continue
		}

		fetcher, ok := createFetcher(src, httpClient, silent)
		if !ok {
			fmt.Printf("Unsupported source: %s\n", src.Name)
			continue
		}

		norm := normalizer.New()
		jobs, err := audit.RunLoader(src.Name, func(ctx context.Context) ([]model.Job, error) {
			raw, err := fetcher.FetchJobs(ctx)
			if err != nil {
				return nil, err
			}
			return norm.NormalizeAll(raw), nil
		})
		if err != nil {
			fmt.Printf("Error fetching jobs: %v\n", err)
			continue
		}

		matched := jobs
		if profile != nil {
			matched = matcher.Match(*profile, jobs)
		}
		// The TUI sorts in place; keep the two panes independent.
		all := append([]model.Job(nil), jobs...)
		matched = append([]model.Job(nil), matched...)

		wantQuit, err := audit.RunAuditTUI(all, matched, audit.ProfileSummary(profile))
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}

// loadProfiles reads stored preferences; the audit still works without them.
func loadProfiles(cfg *config.Config) []model.UserPreferences {
	ctx := context.Background()
	st, err := buildStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Store unavailable, auditing without user profiles: %v\n", err)
		return nil
	}
	defer st.Close()

	prefs, err := st.ListPreferences(ctx)
	if err != nil {
		fmt.Printf("Could not load user profiles: %v\n", err)
		return nil
	}
	return prefs
}

// pickProfile returns the chosen profile, nil for "no profile", and ok=false
// when the user backed out.
func pickProfile(profiles []model.UserPreferences) (*model.UserPreferences, bool, error) {
	if len(profiles) == 0 {
		return nil, true, nil
	}
	labels := []string{"(no profile: everything matches)"}
	for _, p := range profiles {
		label := p.UserID
		if p.Email != "" {
			label = fmt.Sprintf("%s <%s>", p.UserID, p.Email)
		}
		labels = append(labels, label)
	}

	choice, err := audit.RunPicker("Audit: match against which profile?", labels)
	if err != nil || choice < 0 {
		return nil, false, err
	}
	if choice == 0 {
		return nil, true, nil
	}
	p := profiles[choice-1]
	return &p, true, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	slackapi "github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/zulandar/notary/internal/capture"
	"github.com/zulandar/notary/internal/config"
	"github.com/zulandar/notary/internal/docstore"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and credentials",
		Long:  "Runs diagnostic checks: config file, environment credentials, Slack auth, document store reachability, and allow-listed database schemas.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "notary.yaml", "path to Notary config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Notary Doctor")
	fmt.Fprintln(out, "=============")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var results []checkResult

	// 1. Config
	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	// 2. Credentials
	creds, credsResult := checkCredentials()
	results = append(results, credsResult)

	// 3. Slack auth
	if creds != nil {
		results = append(results, checkSlackAuth(ctx, creds))
	} else {
		results = append(results, checkResult{"Slack auth", "FAIL", "skipped (no credentials)"})
	}

	// 4. Document store + allow-listed schemas
	if cfg != nil && creds != nil {
		store, err := docstore.NewHTTPClient(docstore.Opts{
			BaseURL:    cfg.DocStore.BaseURL,
			Token:      creds.DocStoreToken,
			APIVersion: cfg.DocStore.APIVersion,
			Timeout:    time.Duration(cfg.DocStore.TimeoutSec) * time.Second,
		})
		if err != nil {
			results = append(results, checkResult{"Document store", "FAIL", err.Error()})
		} else {
			results = append(results, checkDocStore(ctx, store))
			results = append(results, checkAllowlist(ctx, store, cfg.AllowedDatabases)...)
		}
	} else {
		results = append(results, checkResult{"Document store", "FAIL", "skipped (no config or credentials)"})
	}

	return printResults(out, results)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config", "FAIL", err.Error()}
	}
	detail := fmt.Sprintf("%s (allow-list: %d databases)", path, len(cfg.AllowedDatabases))
	if len(cfg.AllowedDatabases) == 0 {
		detail = fmt.Sprintf("%s (allow-list empty: all databases permitted)", path)
	}
	return cfg, checkResult{"Config", "PASS", detail}
}

func checkCredentials() (*config.Credentials, checkResult) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, checkResult{"Credentials", "FAIL", err.Error()}
	}
	return creds, checkResult{"Credentials", "PASS", "SLACK_APP_TOKEN, SLACK_BOT_TOKEN, DOCSTORE_TOKEN present"}
}

func checkSlackAuth(ctx context.Context, creds *config.Credentials) checkResult {
	api := slackapi.New(creds.SlackBotToken, slackapi.OptionAppLevelToken(creds.SlackAppToken))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return checkResult{"Slack auth", "FAIL", err.Error()}
	}
	return checkResult{"Slack auth", "PASS", fmt.Sprintf("bot %s in team %s", auth.User, auth.Team)}
}

func checkDocStore(ctx context.Context, store docstore.Client) checkResult {
	results, err := store.Search(ctx, "", docstore.KindDatabase)
	if err != nil {
		return checkResult{"Document store", "FAIL", err.Error()}
	}
	return checkResult{"Document store", "PASS", fmt.Sprintf("search returned %d databases", len(results))}
}

// checkAllowlist verifies that every allow-listed database exists and has a
// resolvable schema. A database without a self-relation property still
// works (parent links are skipped), so that only warns.
func checkAllowlist(ctx context.Context, store docstore.Client, ids []string) []checkResult {
	var results []checkResult
	for _, id := range ids {
		name := fmt.Sprintf("Database %s", id)
		schema, err := store.GetSchema(ctx, id)
		if err != nil {
			results = append(results, checkResult{name, "FAIL", err.Error()})
			continue
		}
		resolved, err := capture.ResolveSchema(schema, zerolog.Nop())
		if err != nil {
			results = append(results, checkResult{name, "FAIL", err.Error()})
			continue
		}
		if resolved.RelationProperty == "" {
			results = append(results, checkResult{name, "WARN",
				fmt.Sprintf("title property %q; no self-relation (parent links will be skipped)", resolved.TitleProperty)})
			continue
		}
		results = append(results, checkResult{name, "PASS",
			fmt.Sprintf("title property %q, relation property %q", resolved.TitleProperty, resolved.RelationProperty)})
	}
	return results
}

func printResults(out io.Writer, results []checkResult) error {
	fmt.Fprintln(out)
	failed := 0
	for _, r := range results {
		fmt.Fprintf(out, "[%s] %-24s %s\n", r.status, r.name, r.detail)
		if r.status == "FAIL" {
			failed++
		}
	}
	fmt.Fprintln(out)
	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

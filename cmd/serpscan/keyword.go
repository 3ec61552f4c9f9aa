package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/model"
)

// NewKeywordCmd creates the keyword command and its subcommands.
func NewKeywordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyword",
		Short: "Manage tracked keywords",
		Long: `Keyword manages the registry of tracked search queries.

Each keyword carries the business names and domains that identify the
tracked business in its search results. Only keywords with status "active"
are crawled by the daily sweep.`,
	}

	cmd.AddCommand(newKeywordAddCmd())
	cmd.AddCommand(newKeywordListCmd())
	cmd.AddCommand(newKeywordStatusCmd())
	cmd.AddCommand(newKeywordUpdateCmd())
	cmd.AddCommand(newKeywordDeleteCmd())

	return cmd
}

func newKeywordAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <query>",
		Short: "Register a keyword",
		Long: `Add registers a search query to track.

Examples:
  serpscan keyword add "acme coffee" --name "Acme Coffee" --domain acme.com
  serpscan keyword add "강남 카페" --category cafe --domain acme.co.kr --status pending`,
		Args: cobra.ExactArgs(1),
		RunE: runKeywordAddCmd,
	}

	cmd.Flags().String("category", "", "Grouping label")
	cmd.Flags().StringSlice("name", nil, "Business name to match in result titles (repeatable)")
	cmd.Flags().StringSlice("domain", nil, "Domain to match in result hosts (repeatable)")
	cmd.Flags().String("status", string(model.KeywordActive), "Status: active, paused or pending")
	cmd.Flags().String("notes", "", "Free-form notes")
	addStoreFlags(cmd)

	return cmd
}

func runKeywordAddCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	statusFlag, err := flags.GetString("status")
	if err != nil {
		return err
	}
	status, err := model.ParseKeywordStatus(statusFlag)
	if err != nil {
		return err
	}

	kw := model.NewKeyword(args[0])
	kw.Status = status
	if kw.Category, err = flags.GetString("category"); err != nil {
		return err
	}
	if kw.Notes, err = flags.GetString("notes"); err != nil {
		return err
	}
	names, err := flags.GetStringSlice("name")
	if err != nil {
		return err
	}
	kw.TargetNames = append(kw.TargetNames, trimAll(names)...)
	domains, err := flags.GetStringSlice("domain")
	if err != nil {
		return err
	}
	kw.TargetDomains = append(kw.TargetDomains, trimAll(domains)...)

	return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
		if err := store.CreateKeyword(ctx, kw); err != nil {
			return fmt.Errorf("failed to add keyword: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added keyword %q (%s, %s)\n", kw.Query, kw.ID, kw.Status)
		return nil
	})
}

func newKeywordListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := cmd.Flags().GetString("status")
			if err != nil {
				return err
			}
			var status model.KeywordStatus
			if filter != "" {
				if status, err = model.ParseKeywordStatus(filter); err != nil {
					return err
				}
			}

			return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
				keywords, err := store.ListKeywords(ctx)
				if err != nil {
					return fmt.Errorf("failed to list keywords: %w", err)
				}
				return writeKeywordTable(cmd.OutOrStdout(), filterKeywords(keywords, status))
			})
		},
	}

	cmd.Flags().String("status", "", "Only list keywords with this status")
	addStoreFlags(cmd)

	return cmd
}

func newKeywordStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <keyword-id|query> <active|paused|pending>",
		Short: "Change the status of a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseKeywordStatus(args[1])
			if err != nil {
				return err
			}

			return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
				kw, err := resolveKeyword(ctx, store, args[0])
				if err != nil {
					return err
				}
				if err := store.SetKeywordStatus(ctx, kw.ID, status); err != nil {
					return fmt.Errorf("failed to update keyword: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Keyword %q is now %s\n", kw.Query, status)
				return nil
			})
		},
	}
	addStoreFlags(cmd)

	return cmd
}

func newKeywordUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <keyword-id|query>",
		Short: "Edit a keyword's query, targets, category or notes",
		Long: `Update changes the fields given as flags and keeps the others.
--name and --domain replace the whole list; pass an empty value to clear it.

Examples:
  serpscan keyword update "acme coffee" --name "Acme Coffee" --domain acme.com --domain acme.co.kr
  serpscan keyword update "acme coffee" --notes "" --category cafe`,
		Args: cobra.ExactArgs(1),
		RunE: runKeywordUpdateCmd,
	}

	cmd.Flags().String("query", "", "New search text")
	cmd.Flags().String("category", "", "Grouping label")
	cmd.Flags().StringSlice("name", nil, "Business names to match in result titles (replaces the list)")
	cmd.Flags().StringSlice("domain", nil, "Domains to match in result hosts (replaces the list)")
	cmd.Flags().String("notes", "", "Free-form notes")
	addStoreFlags(cmd)

	return cmd
}

func runKeywordUpdateCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	edits := []string{"query", "category", "name", "domain", "notes"}
	changed := false
	for _, name := range edits {
		if flags.Changed(name) {
			changed = true
		}
	}
	if !changed {
		return errors.New("nothing to update (use --query, --category, --name, --domain or --notes)")
	}

	return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
		kw, err := resolveKeyword(ctx, store, args[0])
		if err != nil {
			return err
		}
		if err := applyKeywordEdits(cmd, kw); err != nil {
			return err
		}
		if err := store.UpdateKeyword(ctx, kw); err != nil {
			return fmt.Errorf("failed to update keyword: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated keyword %q (%s)\n", kw.Query, kw.ID)
		return nil
	})
}

// applyKeywordEdits copies the changed update flags into kw.
func applyKeywordEdits(cmd *cobra.Command, kw *model.Keyword) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("query") {
		if kw.Query, err = flags.GetString("query"); err != nil {
			return err
		}
		kw.Query = strings.TrimSpace(kw.Query)
	}
	if flags.Changed("category") {
		if kw.Category, err = flags.GetString("category"); err != nil {
			return err
		}
	}
	if flags.Changed("notes") {
		if kw.Notes, err = flags.GetString("notes"); err != nil {
			return err
		}
	}
	if flags.Changed("name") {
		names, err := flags.GetStringSlice("name")
		if err != nil {
			return err
		}
		kw.TargetNames = trimAll(names)
	}
	if flags.Changed("domain") {
		domains, err := flags.GetStringSlice("domain")
		if err != nil {
			return err
		}
		kw.TargetDomains = trimAll(domains)
	}
	return nil
}

func newKeywordDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <keyword-id|query>",
		Short: "Delete a keyword and its stored runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
				kw, err := resolveKeyword(ctx, store, args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteKeyword(ctx, kw.ID); err != nil {
					return fmt.Errorf("failed to delete keyword: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted keyword %q and its runs\n", kw.Query)
				return nil
			})
		},
	}
	addStoreFlags(cmd)

	return cmd
}

// withStore loads the configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store database.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	ctx, cancel := signalContext(logger)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, cfg, store)
}

// filterKeywords keeps keywords with status, or all when status is empty.
func filterKeywords(keywords []*model.Keyword, status model.KeywordStatus) []*model.Keyword {
	if status == "" {
		return keywords
	}
	filtered := make([]*model.Keyword, 0, len(keywords))
	for _, kw := range keywords {
		if kw.Status == status {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

// writeKeywordTable renders keywords as a Markdown table, which reads well
// in a terminal and pastes into issues unchanged.
func writeKeywordTable(w io.Writer, keywords []*model.Keyword) error {
	if len(keywords) == 0 {
		_, err := fmt.Fprintln(w, "No keywords registered.")
		return err
	}

	rows := make([][]string, len(keywords))
	for i, kw := range keywords {
		rows[i] = []string{
			kw.ID.String(),
			kw.Query,
			orDash(kw.Category),
			string(kw.Status),
			orDash(strings.Join(kw.TargetNames, ", ")),
			orDash(strings.Join(kw.TargetDomains, ", ")),
		}
	}

	return markdown.NewMarkdown(w).
		Table(markdown.TableSet{
			Header: []string{"ID", "Query", "Category", "Status", "Names", "Domains"},
			Rows:   rows,
		}).
		Build()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// trimAll trims every value and drops empty ones.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

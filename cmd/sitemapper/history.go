package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/nao1215/sitemapper/internal/database"
	"github.com/spf13/cobra"
)

// historyTimeLayout is how crawl times are shown in listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// errNoSeed is returned when a command needs a seed and none was given.
var errNoSeed = errors.New("seed URL is required (use 'sitemapper history --list-seeds' to see stored seeds)")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List stored crawls",
		Long: `History lists the crawls recorded in the history database.

Each crawl is shown with its ID, start time, page and failure counts and
whether it stopped early. Use the ID with 'sitemapper compare --with-id'.

A seed may be given with or without its scheme; it is matched against the
stored seeds.

Examples:
  # List all crawled sites
  sitemapper history --list-seeds

  # List crawls of one site, newest first
  sitemapper history https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-seeds", "L", false,
		"List all seeds with stored crawls")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSeeds, err := cmd.Flags().GetBool("list-seeds")
	if err != nil {
		return err
	}
	// Validate arguments before opening the database.
	if !listSeeds && len(args) == 0 {
		return errNoSeed
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if listSeeds {
		return listStoredSeeds(ctx, db, out)
	}

	seed, err := resolveSeed(ctx, db, args[0])
	if err != nil {
		return err
	}
	return listCrawlHistory(ctx, db, seed, out)
}

// openHistoryDB opens the database selected by --db-dir.
func openHistoryDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := resolveDBDir(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveSeed maps what the user typed to a stored seed. Seeds are stored
// normalized, so "example.com" finds "https://example.com". When nothing
// matches, arg is returned unchanged.
func resolveSeed(ctx context.Context, db *database.CrawlDB, arg string) (string, error) {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return "", err
	}

	candidates := []string{arg}
	if !strings.Contains(arg, "://") {
		candidates = append(candidates, "https://"+arg, "http://"+arg)
	}
	for _, c := range candidates {
		for _, variant := range []string{c, strings.TrimSuffix(c, "/"), c + "/"} {
			if slices.Contains(seeds, variant) {
				return variant, nil
			}
		}
	}
	return arg, nil
}

// listStoredSeeds prints every seed with at least one stored crawl.
func listStoredSeeds(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitemapper crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'sitemapper history <url>' to see the crawls of a site.")
	return nil
}

// listCrawlHistory prints the crawls of seed, newest first.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, seed string, out io.Writer) error {
	crawls, err := db.ListCrawls(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(crawls) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		fmt.Fprintln(out, "\nUse 'sitemapper crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", seed, len(crawls))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %5s  %8s  %s\n",
		"ID", "Started", "Depth", "Pages", "Failures", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 92))

	for _, meta := range crawls {
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %5d  %8d  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format(historyTimeLayout),
			meta.MaxDepth,
			meta.Pages,
			meta.Failures,
			crawlStatus(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'sitemapper compare <url>' to compare the latest two crawls.")
	fmt.Fprintln(out, "Use 'sitemapper compare --with-id <id> <url>' to compare with a specific crawl.")
	return nil
}

// crawlStatus describes how a crawl ended.
func crawlStatus(meta database.CrawlMetadata) string {
	if meta.Partial {
		return "partial"
	}
	return "complete"
}

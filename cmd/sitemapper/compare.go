package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// It compares sitemaps stored in the history database or on disk.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare two crawls of a site",
		Long: `Compare shows how a site's link structure changed between two crawls:
- Pages that appeared or disappeared
- Links each remaining page gained or lost

By default the two latest crawls of the seed in the history database are
compared. Use 'sitemapper history <url>' to see the stored crawls.

Examples:
  # Compare the latest two crawls of a site
  sitemapper compare https://example.com

  # Compare the latest crawl with a specific older crawl
  sitemapper compare --with-id 6f1c... https://example.com

  # Compare two sitemap.json files
  sitemapper compare --from old/sitemap.json --to new/sitemap.json

  # Output the comparison as JSON
  sitemapper compare --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// Comparison target flags
	cmd.Flags().StringP("with-id", "i", "",
		"Compare the latest crawl with the crawl of this ID (see 'sitemapper history')")
	cmd.Flags().String("from", "",
		"Base sitemap.json file (use with --to)")
	cmd.Flags().String("to", "",
		"Target sitemap.json file (use with --from)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown cannot be used together")
	}

	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	to, err := cmd.Flags().GetString("to")
	if err != nil {
		return err
	}

	var diff *model.SitemapDiff
	switch {
	case from != "" || to != "":
		if from == "" || to == "" {
			return errors.New("--from and --to must be used together")
		}
		diff, err = compareFiles(from, to)
	default:
		if len(args) == 0 {
			return errNoSeed
		}
		withID, idErr := cmd.Flags().GetString("with-id")
		if idErr != nil {
			return idErr
		}
		diff, err = compareStored(cmd, args[0], withID)
	}
	if err != nil {
		return err
	}

	return writeDiff(cmd.OutOrStdout(), diff, jsonOutput, markdownOutput)
}

// compareStored diffs crawls from the history database.
func compareStored(cmd *cobra.Command, arg, withID string) (*model.SitemapDiff, error) {
	db, err := openHistoryDB(cmd)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx := cmd.Context()
	seed, err := resolveSeed(ctx, db, arg)
	if err != nil {
		return nil, err
	}
	return compareCrawls(ctx, db, seed, withID)
}

// compareCrawls diffs the latest crawl of seed against the previous one,
// or against the crawl withID when given.
func compareCrawls(ctx context.Context, db *database.CrawlDB, seed, withID string) (*model.SitemapDiff, error) {
	latest, err := db.LatestCrawls(ctx, seed, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", seed)
	}

	target := latest[0]
	var base *database.CrawlRecord
	if withID != "" {
		base, err = db.GetCrawl(ctx, withID)
		if err != nil {
			return nil, fmt.Errorf("failed to get crawl with ID %s: %w", withID, err)
		}
		if base.Seed != seed {
			return nil, fmt.Errorf("crawl %s belongs to %s, not %s", withID, base.Seed, seed)
		}
		if base.ID == target.ID {
			return nil, fmt.Errorf("crawl %s is the latest crawl; choose an older one", withID)
		}
	} else {
		if len(latest) < 2 {
			return nil, fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(latest))
		}
		base = latest[1]
	}

	diff := model.DiffSitemaps(base.Sitemap, target.Sitemap)
	diff.Seed = seed
	diff.BaseID = base.ID
	diff.BaseDate = base.StartedAt
	diff.TargetID = target.ID
	diff.TargetDate = target.StartedAt
	return diff, nil
}

// compareFiles diffs two sitemap.json files.
func compareFiles(from, to string) (*model.SitemapDiff, error) {
	base, err := report.LoadSitemap(from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	target, err := report.LoadSitemap(to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", to, err)
	}
	diff := model.DiffSitemaps(base, target)
	diff.Seed = to
	return diff, nil
}

// writeDiff renders diff in the requested format.
func writeDiff(out io.Writer, diff *model.SitemapDiff, jsonOutput, markdownOutput bool) error {
	var writer report.DiffWriter
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(out)
	default:
		writer = report.NewSimpleWriter(out)
	}
	_, err := writer.WriteDiff(diff)
	return err
}

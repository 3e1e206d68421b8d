package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/visarea/internal/client"
	"github.com/lazypower/visarea/internal/ingest"
)

var (
	serverURL   string
	pushNoNodes bool
)

var pushCmd = &cobra.Command{
	Use:   "push FILE",
	Short: "Send a location file to a running server",
	Long: "Push validates FILE locally, creates its nodes on the server unless --no-create, " +
		"and posts it to the batch endpoint.",
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&serverURL, "server", "", "server URL (default $VISAREA_URL or "+client.DefaultServerURL+")")
	pushCmd.Flags().BoolVar(&pushNoNodes, "no-create", false, "do not create missing nodes")
	tailCmd.Flags().StringVar(&serverURL, "server", "", "server URL (default $VISAREA_URL or "+client.DefaultServerURL+")")
}

var contentTypes = map[ingest.Format]string{
	ingest.JSONL: "application/x-ndjson",
	ingest.CSV:   "text/csv",
}

func runPush(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := ingest.FormatOf(path)
	if err != nil {
		return err
	}
	locs, err := ingest.ReadFile(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c := client.New(serverURL)

	if !pushNoNodes {
		for _, id := range ingest.Nodes(locs) {
			if _, err := c.EnsureNode(ctx, id, ""); err != nil {
				return fmt.Errorf("create node %s: %w", id, err)
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res, err := c.PushBatch(ctx, f, contentTypes[format])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "pushed %s locations across %s nodes (%s scored)\n",
		humanize.Comma(int64(res.Ingested)),
		humanize.Comma(int64(res.Nodes)),
		humanize.Comma(int64(res.Scored)))
	return nil
}

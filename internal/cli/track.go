package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/visarea/internal/client"
	"github.com/lazypower/visarea/internal/engine"
)

// --- nodes command ---

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes in the local database",
	RunE:  runNodes,
}

func runNodes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	nodes, err := db.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes) == 0 {
		fmt.Println("No nodes yet. Import a location file first.")
		return nil
	}

	for _, n := range nodes {
		count, err := db.CountLocations(ctx, n.ID)
		if err != nil {
			return fmt.Errorf("count %s: %w", n.ID, err)
		}
		fmt.Printf("  %s  %s locations, created %s\n",
			n.ID, humanize.Comma(int64(count)), humanize.Time(time.UnixMilli(n.CreatedAt)))
	}
	return nil
}

// --- track command ---

var (
	trackMinArea float64
	trackLimit   int
)

var trackCmd = &cobra.Command{
	Use:   "track NODE",
	Short: "Print a node's stored track with scores",
	Long:  "Print a node's locations in timestamp order. --min-area drops points whose effective area is below the threshold.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

func init() {
	trackCmd.Flags().Float64Var(&trackMinArea, "min-area", 0, "drop points with a smaller effective area")
	trackCmd.Flags().IntVarP(&trackLimit, "limit", "n", 0, "maximum number of locations (0 = all)")
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	nodeID := args[0]
	if _, err := db.GetNode(ctx, nodeID); err != nil {
		return err
	}
	locs, err := db.ListLocations(ctx, nodeID, trackLimit)
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	kept := engine.Simplify(locs, trackMinArea)
	for _, l := range kept {
		fmt.Printf("%s  %11.6f %11.6f  %s  %s\n",
			time.UnixMilli(l.Timestamp).UTC().Format(time.RFC3339), l.Lat, l.Lon, l.Score, l.ID)
	}
	if trackMinArea > 0 {
		fmt.Fprintf(os.Stderr, "kept %s of %s locations\n",
			humanize.Comma(int64(len(kept))), humanize.Comma(int64(len(locs))))
	}
	return nil
}

// --- tail command ---

var tailCmd = &cobra.Command{
	Use:   "tail NODE",
	Short: "Show a node's cached tail on a running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tail, err := client.New(serverURL).Tail(ctx, args[0])
	if err != nil {
		return err
	}
	for _, row := range []struct {
		label string
		loc   *client.Location
	}{{"older", tail.Older}, {"newer", tail.Newer}} {
		if row.loc == nil {
			fmt.Printf("%s: -\n", row.label)
			continue
		}
		score := "unset"
		if row.loc.Score != nil {
			score = fmt.Sprint(row.loc.Score)
		}
		fmt.Printf("%s: %s  ts=%d  %.6f,%.6f  score=%s\n",
			row.label, row.loc.ID, row.loc.TS, row.loc.Lat, row.loc.Lon, score)
	}
	return nil
}

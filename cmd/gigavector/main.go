// Command gigavector is the CLI surface named in §6 as out of core scope —
// a thin driver over the collection/vacuum/migration packages, following
// the teacher's cmd/sqvect layout. The kernel benchmarks live in
// internal/bench, not here.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/kernel"
	"github.com/gigavector/gigavector/migration"
	"github.com/gigavector/gigavector/vacuum"
	"github.com/spf13/cobra"
)

var (
	dimensions int
	indexType  string
	metric     string
)

var rootCmd = &cobra.Command{
	Use:   "gigavector",
	Short: "CLI for the GigaVector embeddable vector database",
	Long:  "A command-line interface for exercising a GigaVector collection: add vectors, search, vacuum, and migrate.",
}

var addCmd = &cobra.Command{
	Use:   "add <comma,separated,floats>",
	Short: "Add a vector to a scratch in-process collection and print its assigned id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(args[0])
		if err != nil {
			return err
		}
		coll, err := openCollection(len(vec))
		if err != nil {
			return err
		}
		defer coll.Close()

		id, err := coll.AddVector(vec)
		if err != nil {
			return fmt.Errorf("add vector: %w", err)
		}
		fmt.Println(id)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <comma,separated,floats>",
	Short: "Search a fresh, empty scratch collection (demo only: no persistence)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := parseVector(args[0])
		if err != nil {
			return err
		}
		k, _ := cmd.Flags().GetInt("k")

		coll, err := openCollection(len(query))
		if err != nil {
			return err
		}
		defer coll.Close()

		m, err := parseMetric(metric)
		if err != nil {
			return err
		}
		results, err := coll.Search(query, k, m)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		for _, r := range results {
			fmt.Printf("%d\t%f\n", r.ID, r.Distance)
		}
		return nil
	},
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Run one manual vacuum pass against a scratch collection (demo only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		coll, err := openCollection(dimensions)
		if err != nil {
			return err
		}
		defer coll.Close()

		mgr := vacuum.New(coll, vacuum.DefaultConfig())
		stats, err := mgr.Run()
		if err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		fmt.Printf("state=%s fragmentation=%f rebuilt=%v\n", stats.State, stats.FragmentationRatio, stats.Rebuilt)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <new-index-type>",
	Short: "Migrate a scratch collection to a new index type and report progress (demo only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newType, err := parseIndexType(args[0])
		if err != nil {
			return err
		}

		coll, err := openCollection(dimensions)
		if err != nil {
			return err
		}
		defer coll.Close()

		entries := coll.LiveEntries()
		m := migration.Start(coll, entries, dimensions, newType, migration.DefaultConfig())
		m.Wait()

		info := m.GetInfo()
		fmt.Printf("status=%s migrated=%d/%d progress=%f\n", info.Status, info.VectorsMigrated, info.Total, info.Progress)
		return nil
	},
}

func openCollection(dim int) (*collection.Collection, error) {
	it, err := parseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	opts := collection.DefaultOptions(dim)
	opts.IndexType = it
	return collection.Open("", opts)
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

func parseMetric(s string) (kernel.Metric, error) {
	switch strings.ToLower(s) {
	case "euclidean", "":
		return kernel.Euclidean, nil
	case "cosine":
		return kernel.Cosine, nil
	case "dot":
		return kernel.Dot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func parseIndexType(s string) (index.Type, error) {
	switch strings.ToLower(s) {
	case "flat", "":
		return index.Flat, nil
	case "kdtree":
		return index.KDTree, nil
	case "hnsw":
		return index.HNSW, nil
	default:
		return 0, fmt.Errorf("unknown index type %q", s)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&dimensions, "dim", 4, "vector dimension")
	rootCmd.PersistentFlags().StringVar(&indexType, "index", "flat", "index type: flat, kdtree, hnsw")
	searchCmd.Flags().Int("k", 10, "number of results to return")
	searchCmd.Flags().StringVar(&metric, "metric", "euclidean", "distance metric: euclidean, cosine, dot")

	rootCmd.AddCommand(addCmd, searchCmd, vacuumCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csvquery/bulkload/internal/cliconfig"
	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/coordinator"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulkload",
		Short: "Parallel bulk-ingest of a delimited file into a time-partitioned table",
	}
	root.AddCommand(newLoadCmd())
	root.AddCommand(newGenFixtureCmd())
	return root
}

func newLoadCmd() *cobra.Command {
	var (
		tableName       string
		inputRoot       string
		inputFile       string
		schemaPath      string
		workRoot        string
		dbRoot          string
		workers         int
		partitionBy     string
		delimiter       string
		autoDetect      bool
		forceHeader     bool
		timestampCol    int
		timestampFormat string
		atomicity       string
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run one bulk load into a staging-then-attach table",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			schema, err := cliconfig.LoadSchema(schemaPath)
			if err != nil {
				return err
			}

			by, err := common.ParsePartitionBy(strings.ToUpper(partitionBy))
			if err != nil {
				return err
			}
			atom, err := common.ParseAtomicity(strings.ToUpper(atomicity))
			if err != nil {
				return err
			}

			var delim byte
			if !autoDetect {
				if len(delimiter) != 1 {
					return fmt.Errorf("--delimiter must be exactly one byte (got %q); use --auto-detect-delimiter instead", delimiter)
				}
				delim = delimiter[0]
			}

			spec := coordinator.LoadSpec{
				TableName:       tableName,
				InputRoot:       inputRoot,
				InputFileName:   inputFile,
				PartitionBy:     by,
				ColumnDelimiter: delim,
				AutoDetect:      autoDetect,
				DetectWindow:    coordinator.DefaultDetectWindow,
				Schema:          schema,
				TimestampColumn: timestampCol,
				TimestampFormat: timestampFormat,
				ForceHeader:     forceHeader,
				WorkRoot:        workRoot,
				DBRoot:          dbRoot,
				Workers:         workers,
				Atomicity:       atom,
			}

			c := coordinator.New(fsfacade.New(), log)
			res, err := c.Run(context.Background(), spec)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d rows written, %d rows rejected, %d partitions\n",
				res.RunID, res.RowsWritten, res.RowsRejected, len(res.PartitionNames))
			if len(res.AttachFailures) > 0 {
				fmt.Printf("%d partitions failed to attach:\n", len(res.AttachFailures))
				for _, f := range res.AttachFailures {
					fmt.Printf("  %s: %v\n", f.Partition, f.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tableName, "table", "", "destination table name (required)")
	cmd.Flags().StringVar(&inputRoot, "input-root", "", "directory containing the input file (required)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "input file name within --input-root (required)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the JSON column schema file (required)")
	cmd.Flags().StringVar(&workRoot, "work-root", "./work", "scratch directory for staging tables and index shards")
	cmd.Flags().StringVar(&dbRoot, "db-root", "./db", "root directory the final table is attached under")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of parallel workers")
	cmd.Flags().StringVar(&partitionBy, "partition-by", "day", "partition granularity: hour|day|month|year")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "single-byte field delimiter")
	cmd.Flags().BoolVar(&autoDetect, "auto-detect-delimiter", false, "detect the delimiter from the first DetectWindow bytes instead of using --delimiter")
	cmd.Flags().BoolVar(&forceHeader, "header", false, "skip the first line as a header row")
	cmd.Flags().IntVar(&timestampCol, "timestamp-column", 0, "index of the timestamp column")
	cmd.Flags().StringVar(&timestampFormat, "timestamp-format", "", "time.Parse layout for the timestamp column (default RFC3339Nano)")
	cmd.Flags().StringVar(&atomicity, "atomicity", "skip_row", "row-failure handling: skip_all|skip_row|skip_column")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("input-root")
	cmd.MarkFlagRequired("input-file")
	cmd.MarkFlagRequired("schema")

	return cmd
}

// newGenFixtureCmd generates a synthetic delimited fixture for manual runs
// and property-test setup.
func newGenFixtureCmd() *cobra.Command {
	var (
		outPath  string
		rows     int
		hosts    int
		startDay string
		days     int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "genfixture",
		Short: "Generate a synthetic timestamp,host,value CSV fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startDay)
			if err != nil {
				return fmt.Errorf("invalid --start-day: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()

			rng := rand.New(rand.NewSource(seed))
			if _, err := f.WriteString("ts,host,value\n"); err != nil {
				return err
			}
			for i := 0; i < rows; i++ {
				day := start.AddDate(0, 0, rng.Intn(days))
				ts := day.Add(time.Duration(rng.Int63n(int64(24 * time.Hour))))
				host := fmt.Sprintf("host-%d", rng.Intn(hosts))
				line := fmt.Sprintf("%s,%s,%d\n", ts.Format(time.RFC3339), host, rng.Intn(10000))
				if _, err := f.WriteString(line); err != nil {
					return err
				}
			}

			fmt.Printf("wrote %d rows to %s\n", rows, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "fixture.csv", "output file path")
	cmd.Flags().IntVar(&rows, "rows", 100_000, "number of data rows to generate")
	cmd.Flags().IntVar(&hosts, "hosts", 20, "distinct symbol values for the host column")
	cmd.Flags().StringVar(&startDay, "start-day", "2020-01-01", "first day in the generated range, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 7, "number of distinct days rows are spread across")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed for reproducible fixtures")

	return cmd
}

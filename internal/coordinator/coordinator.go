// Package coordinator drives the five-phase bulk-ingest pipeline end to
// end (spec §4.4): it owns the work directory, dispatches each phase's
// tasks to the shared work queue, waits for the phase barrier, and
// checks the shared error slot before letting the next phase start.
//
// Grounded in the teacher's Indexer.Run (indexer.go): a Config struct, a
// single driving method that walks its phases top to bottom, and
// channel-based fan-out/fan-in — generalized here from the teacher's
// single indexing pass into five strictly sequential phases, each
// running under workqueue.Run instead of a bespoke WaitGroup, and logged
// through a *logrus.Entry instead of fmt.Println banners (see
// SPEC_FULL.md §10).
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/csvquery/bulkload/internal/attach"
	"github.com/csvquery/bulkload/internal/boundary"
	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/indexstore"
	"github.com/csvquery/bulkload/internal/load"
	"github.com/csvquery/bulkload/internal/merge"
	"github.com/csvquery/bulkload/internal/partindex"
	"github.com/csvquery/bulkload/internal/symbol"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/workqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result summarizes one completed load, returned to the caller of Run.
type Result struct {
	RunID          string
	PartitionNames []string
	RowsWritten    int64
	RowsRejected   int64
	RecordsIndexed int64
	RecordsSkipped int64
	AttachFailures []attach.Failure
}

// Coordinator holds the dependencies Run needs; a fresh one should be
// constructed per load (spec §9: "no process-wide singletons").
type Coordinator struct {
	FS  fsfacade.Filesystem
	Log *logrus.Entry
}

func New(fs fsfacade.Filesystem, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.New()
	}
	return &Coordinator{FS: fs, Log: logrus.NewEntry(log)}
}

// Run executes the full five-phase load described by spec. Phases run
// strictly sequentially; within a phase, tasks run under
// workqueue.Run(ctx, queue, spec.Workers), which makes the calling
// goroutine itself a consumer (spec §5: self-deadlock avoidance at
// Workers == 1).
func (c *Coordinator) Run(ctx context.Context, spec LoadSpec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := c.Log.WithFields(logrus.Fields{"table": spec.TableName, "run": runID})

	workRoot := filepath.Join(spec.WorkRoot, spec.TableName)
	if err := c.FS.MkdirAll(workRoot); err != nil {
		return nil, common.NewLoadError(common.KindIO, "setup", fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := c.FS.Rmdir(workRoot); err != nil {
			log.WithError(err).Warn("failed to remove work directory")
		}
	}()

	if err := writeManifest(workRoot, runID, "starting"); err != nil {
		log.WithError(err).Warn("failed to write run manifest")
	}

	inputPath := filepath.Join(spec.InputRoot, spec.InputFileName)
	size, err := c.FS.Length(inputPath)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "setup", fmt.Errorf("stat input: %w", err))
	}
	if size == 0 {
		return nil, common.NewLoadError(common.KindConfig, "setup", fmt.Errorf("input file is empty"))
	}

	inputFile, err := c.FS.OpenRO(inputPath)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "setup", fmt.Errorf("open input: %w", err))
	}
	defer inputFile.Close()

	source, err := c.FS.Mmap(inputFile, size)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "setup", fmt.Errorf("mmap input: %w", err))
	}
	defer c.FS.Munmap(source)

	delim := spec.ColumnDelimiter
	if spec.AutoDetect {
		window := spec.DetectWindow
		if window <= 0 || int64(window) > size {
			window = int(size)
		}
		delim = detectDelimiter(source[:window])
	}

	var headerLen int64
	if spec.ForceHeader {
		if nl := indexOf(source, '\n'); nl >= 0 {
			headerLen = int64(nl + 1)
		}
	}

	writeManifest(workRoot, runID, "boundary-scan")
	boundaries, err := c.runBoundaryScan(ctx, source, headerLen, spec, log)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "boundary-scan", err)
	}

	writeManifest(workRoot, runID, "indexing")
	indexRes, err := c.runIndexing(ctx, source, boundaries, workRoot, delim, spec, log)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "indexing", err)
	}

	writeManifest(workRoot, runID, "merge-and-load")
	loadRes, taskDistribution, err := c.runMergeAndLoad(ctx, inputFile, workRoot, indexRes, delim, spec, log)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "merge-and-load", err)
	}

	writeManifest(workRoot, runID, "symbol-merge")
	finalRoot := filepath.Join(spec.DBRoot, spec.TableName)
	if err := c.FS.MkdirAll(finalRoot); err != nil {
		return nil, common.NewLoadError(common.KindIO, "symbol-merge", fmt.Errorf("create final table dir: %w", err))
	}
	finalWriter, err := table.Open(finalRoot, spec.Schema)
	if err != nil {
		return nil, common.NewLoadError(common.KindIO, "symbol-merge", err)
	}
	if err := c.runSymbolMerge(spec, workRoot, finalRoot, taskDistribution, finalWriter); err != nil {
		return nil, common.NewLoadError(common.KindIO, "symbol-merge", err)
	}

	writeManifest(workRoot, runID, "attach")
	attachFailures := c.runAttach(workRoot, finalRoot, spec.TableName, finalWriter, taskDistribution, log)

	return &Result{
		RunID:          runID,
		PartitionNames: indexRes.partitionNames,
		RowsWritten:    loadRes.rowsWritten,
		RowsRejected:   loadRes.rowsRejected,
		RecordsIndexed: indexRes.recordsIndexed,
		RecordsSkipped: indexRes.recordsSkipped,
		AttachFailures: attachFailures,
	}, nil
}

func indexOf(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}

// runBoundaryScan is phase 1 (spec §4.1, §4.2). headerLen bytes at the
// front of source are skipped entirely (spec §6's forceHeader), but
// every offset stays absolute within the full mmapped source so record
// offsets recorded during indexing remain valid prereads against the
// original file.
func (c *Coordinator) runBoundaryScan(ctx context.Context, source []byte, headerLen int64, spec LoadSpec, log *logrus.Entry) ([]boundary.IndexingChunk, error) {
	fileLen := int64(len(source))
	chunkStarts, ends := splitIntoChunks(fileLen-headerLen, spec.Workers)
	for i := range chunkStarts {
		chunkStarts[i] += headerLen
		ends[i] += headerLen
	}

	stats := make([]boundary.ChunkStat, len(chunkStarts))
	q := workqueue.NewQueue()
	for i := range chunkStarts {
		i := i
		lo, hi := chunkStarts[i], ends[i]
		q.Submit(func(ctx context.Context) error {
			stats[i] = boundary.Scan(source[lo:hi])
			return nil
		})
	}
	q.Close()

	if err := workqueue.Run(ctx, q, spec.Workers); err != nil {
		return nil, err
	}

	boundaries := boundary.Reconcile(stats, chunkStarts, fileLen)
	if headerLen > 0 && len(boundaries) > 0 {
		boundaries[0].StartOffset = headerLen
	}
	chunks := boundary.Chunks(boundaries)
	log.WithField("phase", "boundary-scan").WithField("chunks", len(chunks)).Info("boundary scan complete")
	return chunks, nil
}

// splitIntoChunks divides [0, fileLen) into up to n roughly equal pieces.
func splitIntoChunks(fileLen int64, n int) (starts, ends []int64) {
	if n < 1 {
		n = 1
	}
	size := fileLen / int64(n)
	if size == 0 {
		return []int64{0}, []int64{fileLen}
	}
	starts = make([]int64, 0, n)
	ends = make([]int64, 0, n)
	for i := 0; i < n; i++ {
		lo := int64(i) * size
		hi := lo + size
		if i == n-1 {
			hi = fileLen
		}
		starts = append(starts, lo)
		ends = append(ends, hi)
	}
	return starts, ends
}

type indexingOutcome struct {
	partitionNames []string
	maxLineLength  int64
	recordsIndexed int64
	recordsSkipped int64
}

// runIndexing is phase 2 (spec §4.3).
func (c *Coordinator) runIndexing(ctx context.Context, source []byte, chunks []boundary.IndexingChunk, workRoot string, delim byte, spec LoadSpec, log *logrus.Entry) (*indexingOutcome, error) {
	results := make([]*partindex.Result, len(chunks))
	q := workqueue.NewQueue()
	for i, chunk := range chunks {
		i, chunk := i, chunk
		q.Submit(func(ctx context.Context) error {
			cfg := partindex.Config{
				TableRoot:        workRoot,
				WorkerID:         i,
				ChunkID:          0,
				Delimiter:        delim,
				TimestampColumn:  spec.TimestampColumn,
				TimestampAdapter: spec.timestampAdapter(),
				PartitionBy:      spec.PartitionBy,
				RunMaxInMemory:   100_000,
			}
			res, err := partindex.Index(c.FS, source, chunk.Lo, chunk.Hi, chunk.StartingLine, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	q.Close()

	if err := workqueue.Run(ctx, q, spec.Workers); err != nil {
		return nil, err
	}

	out := &indexingOutcome{}
	partitionSet := make(map[string]struct{})
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.MaxLineLength > out.maxLineLength {
			out.maxLineLength = res.MaxLineLength
		}
		out.recordsIndexed += res.RecordsIndexed
		out.recordsSkipped += res.RecordsSkipped
		for name := range res.PartitionKeys {
			partitionSet[name] = struct{}{}
		}
	}
	for name := range partitionSet {
		out.partitionNames = append(out.partitionNames, name)
	}
	sort.Strings(out.partitionNames)

	log.WithField("phase", "indexing").WithFields(logrus.Fields{
		"partitions": len(out.partitionNames),
		"records":    out.recordsIndexed,
		"skipped":    out.recordsSkipped,
	}).Info("indexing complete")
	return out, nil
}

type loadOutcome struct {
	rowsWritten  int64
	rowsRejected int64
}

// runMergeAndLoad is phase 3 (spec §4.5): per partition, k-way merge its
// index shards then stream rows into the partition's assigned worker's
// staging table. taskDistribution maps workerId -> partition names it
// owns, round-robin per spec §4.4.
func (c *Coordinator) runMergeAndLoad(ctx context.Context, inputFile fsfacade.File, workRoot string, idx *indexingOutcome, delim byte, spec LoadSpec, log *logrus.Entry) (*loadOutcome, map[int][]string, error) {
	taskDistribution := make(map[int][]string)
	for i, name := range idx.partitionNames {
		worker := i % spec.Workers
		taskDistribution[worker] = append(taskDistribution[worker], name)
	}

	writers := make(map[int]*table.Writer)
	writerLocks := make(map[int]*sync.Mutex)
	for worker := range taskDistribution {
		root := filepath.Join(workRoot, fmt.Sprintf("%s__%d", spec.TableName, worker))
		w, err := table.Open(root, spec.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("open staging table %d: %w", worker, err)
		}
		writers[worker] = w
		writerLocks[worker] = &sync.Mutex{}
	}

	var mu sync.Mutex
	out := &loadOutcome{}
	adapters := spec.adapters()

	q := workqueue.NewQueue()
	for worker, names := range taskDistribution {
		worker := worker
		w := writers[worker]
		lock := writerLocks[worker]
		for _, name := range names {
			name := name
			q.Submit(func(ctx context.Context) error {
				partitionDir := filepath.Join(workRoot, name)
				if _, err := merge.Merge(c.FS, partitionDir); err != nil {
					return fmt.Errorf("merge partition %s: %w", name, err)
				}

				data, err := readWhole(c.FS, filepath.Join(partitionDir, "__index"))
				if err != nil {
					return err
				}
				entries := indexstore.DecodeAll(data)

				cfg := load.Config{
					Delimiter:     delim,
					MaxLineLength: idx.maxLineLength,
					Adapters:      adapters,
					Atomicity:     spec.Atomicity,
				}
				// A staging writer holds one open partition at a time, so
				// one worker's partitions are loaded one after another.
				lock.Lock()
				res, err := load.Load(inputFile, entries, w, name, cfg)
				lock.Unlock()
				if err != nil {
					return fmt.Errorf("load partition %s: %w", name, err)
				}

				mu.Lock()
				out.rowsWritten += res.RowsWritten
				out.rowsRejected += res.RowsRejected
				mu.Unlock()
				return nil
			})
		}
	}
	q.Close()

	if err := workqueue.Run(ctx, q, spec.Workers); err != nil {
		return nil, nil, err
	}

	log.WithField("phase", "merge-and-load").WithFields(logrus.Fields{
		"rowsWritten":  out.rowsWritten,
		"rowsRejected": out.rowsRejected,
	}).Info("merge and load complete")
	return out, taskDistribution, nil
}

// runSymbolMerge is phase 4 (spec §4.6). It runs serially: the symbol
// columns are typically few and the whole point is a single consistent
// ordering across workers, so there's no benefit fanning this out.
func (c *Coordinator) runSymbolMerge(spec LoadSpec, workRoot, finalRoot string, taskDistribution map[int][]string, final *table.Writer) error {
	workerIDs := make([]int, 0, len(taskDistribution))
	for w := range taskDistribution {
		workerIDs = append(workerIDs, w)
	}
	sort.Ints(workerIDs)

	for _, col := range spec.Schema.SymbolColumns() {
		workerDicts := make([]*table.Dictionary, len(workerIDs))
		stagingRoots := make([]string, len(workerIDs))
		for i, worker := range workerIDs {
			root := filepath.Join(workRoot, fmt.Sprintf("%s__%d", spec.TableName, worker))
			stagingRoots[i] = root
			d, err := table.LoadDictionary(filepath.Join(root, fmt.Sprintf("dict_%d.json", col)))
			if err != nil {
				return fmt.Errorf("load staging dictionary (worker %d, col %d): %w", worker, col, err)
			}
			workerDicts[i] = d
		}

		finalDict := final.SymbolMapWriter(col)
		remaps := symbol.MergeColumn(finalDict, workerDicts)

		for i, worker := range workerIDs {
			root := stagingRoots[i]
			partitionNames := taskDistribution[worker]
			for _, name := range partitionNames {
				partitionDir := filepath.Join(root, name)
				if err := symbol.RewriteColumn(c.FS, partitionDir, col, remaps[i]); err != nil {
					return fmt.Errorf("rewrite column %d in %s: %w", col, partitionDir, err)
				}
			}
		}

		if err := table.SaveDictionary(filepath.Join(finalRoot, fmt.Sprintf("dict_%d.json", col)), finalDict); err != nil {
			return fmt.Errorf("save final dictionary (col %d): %w", col, err)
		}
	}
	return nil
}

// runAttach is phase 5 (spec §4.7).
func (c *Coordinator) runAttach(workRoot, finalRoot, tableName string, final *table.Writer, taskDistribution map[int][]string, log *logrus.Entry) []attach.Failure {
	var failures []attach.Failure
	for worker, names := range taskDistribution {
		stagingDir := filepath.Join(workRoot, fmt.Sprintf("%s__%d", tableName, worker))
		res := attach.Attach(c.FS, stagingDir, finalRoot, final, names, log.WithField("worker", worker))
		failures = append(failures, res.Failures...)
	}
	return failures
}

func readWhole(fs fsfacade.Filesystem, path string) ([]byte, error) {
	size, err := fs.Length(path)
	if err != nil {
		return nil, err
	}
	f, err := fs.OpenRO(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, size)
	if size > 0 {
		if _, err := f.ReadAt(buf, 0); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func writeManifest(workRoot, runID, phase string) error {
	path := filepath.Join(workRoot, fmt.Sprintf(".run-%s", runID))
	tmp := path + ".tmp"
	data := fmt.Sprintf(`{"runId":%q,"phase":%q}`, runID, phase)
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Package merge implements phase 3's IndexMerger (spec §4.5): for one
// partition, k-way merge every worker's already-sorted run file into a
// single merged __index file ready for the PartitionLoader to walk.
package merge

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/indexstore"
)

// RunFiles lists every per-worker run file belonging to partitionDir,
// in a stable order: lexicographic by filename. PartitionIndexer names
// them "{workerId}_{chunkId}", so this is string order, not numeric
// worker order ("10_0" sorts before "2_0").
func RunFiles(fs fsfacade.Filesystem, partitionDir string) ([]string, error) {
	names, err := fs.ReadDir(partitionDir)
	if err != nil {
		return nil, fmt.Errorf("list partition dir %s: %w", partitionDir, err)
	}
	var runs []string
	for _, n := range names {
		if strings.HasPrefix(n, "__") {
			continue
		}
		runs = append(runs, n)
	}
	sort.Strings(runs)
	return runs, nil
}

// Merge reads every run file in partitionDir, k-way merges them, and
// writes the result to partitionDir/__index, returning the total entry
// count (spec §4.5: "__index, a single file of IndexEntry records sorted
// by timestamp spanning the whole partition").
func Merge(fs fsfacade.Filesystem, partitionDir string) (int64, error) {
	runNames, err := RunFiles(fs, partitionDir)
	if err != nil {
		return 0, err
	}

	var openFiles []fsfacade.File
	var mapped [][]byte
	defer func() {
		for _, d := range mapped {
			fs.Munmap(d)
		}
		for _, f := range openFiles {
			f.Close()
		}
	}()

	runs := make([]indexstore.Run, 0, len(runNames))
	for _, name := range runNames {
		path := filepath.Join(partitionDir, name)
		size, err := fs.Length(path)
		if err != nil {
			return 0, fmt.Errorf("stat run %s: %w", path, err)
		}
		if size == 0 {
			continue
		}
		f, err := fs.OpenRO(path)
		if err != nil {
			return 0, fmt.Errorf("open run %s: %w", path, err)
		}
		openFiles = append(openFiles, f)

		data, err := fs.Mmap(f, size)
		if err != nil {
			return 0, fmt.Errorf("mmap run %s: %w", path, err)
		}
		mapped = append(mapped, data)

		runs = append(runs, indexstore.NewSliceRun(indexstore.DecodeAll(data)))
	}

	outPath := filepath.Join(partitionDir, "__index")
	out, err := fs.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create merged index: %w", err)
	}
	defer out.Close()

	bw := bufio.NewWriterSize(out, 256*1024)
	count, err := indexstore.MergeRuns(runs, func(e common.IndexEntry) error {
		return indexstore.WriteEntry(bw, e)
	})
	if err != nil {
		return count, fmt.Errorf("merge partition %s: %w", partitionDir, err)
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("flush merged index: %w", err)
	}
	return count, nil
}

// Package attach implements phase 5's Attacher (spec §4.7): move each
// partition directory from a staging table into the final table and
// request attach from the external table writer. Rename and attach
// failures are logged and the run continues with the remaining
// partitions — the whole load is restartable, so a partial attach is
// never rolled back (spec §9's open question; retained as log-and-
// continue per the original's behavior).
package attach

import (
	"fmt"
	"path/filepath"

	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/sirupsen/logrus"
)

// Failure records one partition that could not be renamed or attached,
// collected instead of aborting the whole phase.
type Failure struct {
	Partition string
	Err       error
}

// Result is the outcome of attaching every partition of one staging
// table into the final table.
type Result struct {
	Attached int
	Failures []Failure
}

// Attach renames stagingDir/{partitionName} to finalDir/{partitionName}
// for every name in partitionNames and calls final.AttachPartition. A
// failure on one partition is logged via log and does not stop the rest.
func Attach(fs fsfacade.Filesystem, stagingDir, finalDir string, final *table.Writer, partitionNames []string, log *logrus.Entry) Result {
	var res Result
	for _, name := range partitionNames {
		src := filepath.Join(stagingDir, name)
		dst := filepath.Join(finalDir, name)

		if err := fs.Rename(src, dst); err != nil {
			res.Failures = append(res.Failures, Failure{Partition: name, Err: fmt.Errorf("rename: %w", err)})
			log.WithError(err).WithField("partition", name).Error("attach: rename failed, skipping partition")
			continue
		}

		if err := final.AttachPartition(name); err != nil {
			res.Failures = append(res.Failures, Failure{Partition: name, Err: fmt.Errorf("attach: %w", err)})
			log.WithError(err).WithField("partition", name).Error("attach: table writer rejected partition")
			continue
		}

		res.Attached++
	}
	return res
}

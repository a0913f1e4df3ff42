package lint

import (
	"sort"
	"time"

	"github.com/mentorlint/mentor/pkg/rules"
	"github.com/mentorlint/mentor/pkg/stats"
)

// ClusterStat summarizes one duplicate cluster found in a file.
type ClusterStat struct {
	Granularity string  `json:"granularity"`
	Instances   int     `json:"instances"`
	Similarity  float64 `json:"similarity"`
	Identical   bool    `json:"identical"`
}

// FileResult holds the findings for a single analyzed file. It carries only
// serializable data so results can round-trip through the cache.
type FileResult struct {
	Path     string          `json:"path"`
	Findings []rules.Finding `json:"findings,omitempty"`
	Units    int             `json:"units"`
	Clusters []ClusterStat   `json:"clusters,omitempty"`
	Cached   bool            `json:"cached,omitempty"`
}

// Report is the aggregate result of one lint run.
type Report struct {
	Files    []FileResult    `json:"files"`
	Findings []rules.Finding `json:"findings"`
	Errors   []string        `json:"errors,omitempty"`
	Summary  Summary         `json:"summary"`
}

// Summary provides aggregate statistics for a run.
type Summary struct {
	FilesScanned      int            `json:"files_scanned"`
	FilesFromCache    int            `json:"files_from_cache"`
	FilesFailed       int            `json:"files_failed"`
	TotalFindings     int            `json:"total_findings"`
	BySeverity        map[string]int `json:"by_severity"`
	ByRule            map[string]int `json:"by_rule"`
	P50Findings       float64        `json:"p50_findings_per_file"`
	P95Findings       float64        `json:"p95_findings_per_file"`
	DuplicateClusters int            `json:"duplicate_clusters"`
	AvgSimilarity     float64        `json:"avg_similarity"`

	// Wall time is excluded from serialized output so identical trees
	// render identical reports.
	Duration time.Duration `json:"-"`
}

// NewSummary creates an initialized summary.
func NewSummary() Summary {
	return Summary{
		BySeverity: make(map[string]int),
		ByRule:     make(map[string]int),
	}
}

// AddFinding updates the summary counters with a new finding.
func (s *Summary) AddFinding(f rules.Finding) {
	s.TotalFindings++
	s.BySeverity[string(f.Severity)]++
	s.ByRule[f.Rule]++
}

// HasFindings reports whether any rule produced a finding.
func (r *Report) HasFindings() bool {
	return len(r.Findings) > 0
}

// finalize fills in the derived summary statistics once all file results
// have been collected.
func (r *Report) finalize() {
	if len(r.Files) > 0 {
		perFile := make([]float64, len(r.Files))
		for i, fr := range r.Files {
			perFile[i] = float64(len(fr.Findings))
		}
		sort.Float64s(perFile)
		r.Summary.P50Findings = stats.Percentile(perFile, 50)
		r.Summary.P95Findings = stats.Percentile(perFile, 95)
	}

	var similarities []float64
	for _, fr := range r.Files {
		for _, c := range fr.Clusters {
			similarities = append(similarities, c.Similarity)
		}
	}
	r.Summary.DuplicateClusters = len(similarities)
	if len(similarities) > 0 {
		r.Summary.AvgSimilarity = stats.Mean(similarities)
	}
}

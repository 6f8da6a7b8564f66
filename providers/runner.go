package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Report is the persisted enrichment output for one subject.
type Report struct {
	Subject    Subject  `json:"subject"`
	Results    []Result `json:"results"`
	EnrichedAt string   `json:"enriched_at"`
}

// Runner fans each subject out to every supporting provider and persists
// one report per subject key under Dir.
type Runner struct {
	Providers []Provider
	Dir       string
}

// Run enriches all subjects. A provider failure is logged and recorded in
// the report, not fatal; write failures are.
func (r *Runner) Run(ctx context.Context, subjects []Subject) ([]Report, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create enrichment dir: %w", err)
	}
	var reports []Report
	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep := Report{Subject: s, EnrichedAt: time.Now().UTC().Format(time.RFC3339)}
		for _, p := range r.Providers {
			if !p.Supports(s.Type) {
				continue
			}
			res, err := p.Enrich(ctx, s)
			if err != nil {
				slog.Warn("provider failed",
					slog.String("provider", p.Name()),
					slog.String("subject", s.Key),
					slog.Any("err", err))
				res = Result{Provider: p.Name()}
			}
			rep.Results = append(rep.Results, res)
		}
		sort.Slice(rep.Results, func(i, j int) bool { return rep.Results[i].Provider < rep.Results[j].Provider })
		if err := r.write(rep); err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (r *Runner) write(rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", rep.Subject.Key, err)
	}
	path := filepath.Join(r.Dir, rep.Subject.Key+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", rep.Subject.Key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persist report %s: %w", rep.Subject.Key, err)
	}
	return nil
}

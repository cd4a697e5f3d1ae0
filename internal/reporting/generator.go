package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exchange-ledger/internal/analytics"
	"exchange-ledger/internal/holdings"
	"exchange-ledger/internal/storage"
)

// Generator produces reports from the compiled ledger.
type Generator struct {
	movements     storage.MovementStore
	engine        *analytics.Engine
	source        string
	refCurrency   string
	rollingWindow int
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(movements storage.MovementStore, engine *analytics.Engine, source, refCurrency string, rollingWindow int) *Generator {
	if rollingWindow <= 0 {
		rollingWindow = 30
	}
	return &Generator{
		movements:     movements,
		engine:        engine,
		source:        source,
		refCurrency:   refCurrency,
		rollingWindow: rollingWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate reconstructs holdings from the full ledger and assembles a
// complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	movements, err := g.movements.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(movements) == 0 {
		return nil, analytics.ErrInsufficientHistory
	}

	generatedAt := g.now()
	matrix, warnings := holdings.Build(movements, generatedAt.UnixMilli())

	summary, err := g.engine.Summarize(ctx, matrix, movements)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	nav, _ := g.engine.NAVSeries(ctx, matrix)

	return &Report{
		GeneratedAt:     generatedAt,
		Source:          g.source,
		RefCurrency:     g.refCurrency,
		Summary:         summary,
		NAV:             nav,
		RollingVol:      analytics.RollingVolatility(nav, g.rollingWindow),
		RollingReturns:  analytics.RollingReturns(nav, g.rollingWindow),
		BalanceWarnings: warnings,
	}, nil
}

// WriteFiles renders the report to outputDir as Markdown plus CSV series.
func (g *Generator) WriteFiles(r *Report, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	stamp := r.GeneratedAt.Format("2006-01-02")

	files := map[string]string{
		fmt.Sprintf("performance_%s.md", stamp): RenderMarkdown(r),
		fmt.Sprintf("nav_%s.csv", stamp):        RenderNAVCSV(r.NAV),
		fmt.Sprintf("rolling_%s.csv", stamp):    RenderRollingCSV(r.RollingVol, r.RollingReturns),
	}
	for name, content := range files {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

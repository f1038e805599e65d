package chart

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// FileName is the artifact written into the chart directory.
const FileName = "chart.svg"

// URLPrefix is where the router serves the chart directory.
const URLPrefix = "/static/charts/"

// Generator writes the overview chart to disk. Concurrent calls share one
// render.
type Generator struct {
	dir   string
	opts  Options
	group singleflight.Group
}

// NewGenerator constructs a Generator writing into dir.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir, opts: DefaultOptions()}
}

// Path returns the on-disk location of the chart.
func (g *Generator) Path() string {
	return filepath.Join(g.dir, FileName)
}

// Generate renders bars and atomically replaces the chart file. It returns
// the URL of the fresh chart with a version query for cache busting.
func (g *Generator) Generate(ctx context.Context, bars []Bar) (string, error) {
	if len(bars) == 0 {
		return "", ErrNoData
	}
	v, err, _ := g.group.Do(FileName, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return g.write(bars)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Generator) write(bars []Bar) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("chart: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(g.dir, ".chart-*.svg")
	if err != nil {
		return "", fmt.Errorf("chart: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buf := bufio.NewWriter(tmp)
	if err := Render(buf, bars, g.opts); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chart: write: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chart: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("chart: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), g.Path()); err != nil {
		return "", fmt.Errorf("chart: replace: %w", err)
	}

	info, err := os.Stat(g.Path())
	if err != nil {
		return "", fmt.Errorf("chart: stat: %w", err)
	}
	return URLPrefix + FileName + "?v=" + strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

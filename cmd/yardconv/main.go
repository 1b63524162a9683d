// yardconv loads the yard's static tables, reports obstacles that will be
// ignored and rewrites every table as normalized YAML.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/data"
)

type table struct {
	file   string
	encode func() ([]byte, error)
	count  int
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: yardconv <input-dir> <output-dir>")
		os.Exit(1)
	}
	if err := convert(os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func convert(inDir, outDir string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	routes, err := data.LoadRouteTable(filepath.Join(inDir, "route_list.yaml"))
	if err != nil {
		return err
	}
	obstacles, err := data.LoadObstacleTable(filepath.Join(inDir, "obstacle_list.yaml"), log)
	if err != nil {
		return err
	}
	zones, err := data.LoadZoneTable(filepath.Join(inDir, "zone_list.yaml"))
	if err != nil {
		return err
	}
	tables := []table{
		{"route_list.yaml", routes.Encode, routes.Count()},
		{"obstacle_list.yaml", obstacles.Encode, obstacles.Count()},
		{"zone_list.yaml", zones.Encode, zones.Count()},
	}

	rosterPath := filepath.Join(inDir, "roster.yaml")
	if _, err := os.Stat(rosterPath); err == nil {
		roster, err := data.LoadRoster(rosterPath)
		if err != nil {
			return err
		}
		if _, err := roster.Expand(); err != nil {
			return fmt.Errorf("roster %s: %w", rosterPath, err)
		}
		tables = append(tables, table{"roster.yaml", roster.Encode, len(roster.Kinds())})
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	for _, t := range tables {
		raw, err := t.encode()
		if err != nil {
			return fmt.Errorf("encode %s: %w", t.file, err)
		}
		out := filepath.Join(outDir, t.file)
		header := fmt.Sprintf("# %s: normalized by yardconv (%d entries)\n", t.file, t.count)
		if err := os.WriteFile(out, append([]byte(header), raw...), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("Wrote %d entries to %s\n", t.count, out)
	}

	invalid := obstacles.Invalid()
	ids := make([]string, 0, len(invalid))
	for id := range invalid {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  obstacle %s ignored: %v\n", id, invalid[id])
	}
	fmt.Printf("Routes %d, obstacles %d valid / %d total (area %.4f), zones %d with %d slots\n",
		routes.Count(), len(obstacles.Obstacles()), obstacles.Count(), obstacles.Area(), zones.Count(), zones.SlotCount())
	return nil
}

// Command gcdemo drives a Collector from the command line: allocate
// synthetic objects, trigger collections, and print counters. It
// exists to exercise the gc package end-to-end outside of tests, the
// way the teacher's own cmd/ tools wrap runtime/pprof and friends.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cmichelenstrofer/corevm/gc"
)

// leafType is a TypeDescriptor for an object with no pointer fields,
// the cheapest possible cell to allocate for load-testing the pool
// allocator.
type leafType struct{ size uintptr }

func (t leafType) Size() uintptr      { return t.size }
func (t leafType) Kind() gc.FieldKind { return gc.FieldMap8 }
func (t leafType) Fields() []uint32   { return nil }
func (t leafType) IsArray() bool      { return false }
func (t leafType) ArrayLayout() (gc.ArrayHow, uintptr, gc.TypeDescriptor, uintptr) {
	return gc.ArrayInline, 0, nil, 0
}

var v = viper.New()

func main() {
	root := &cobra.Command{
		Use:   "gcdemo",
		Short: "Exercise the corevm collector core from the command line.",
	}
	root.PersistentFlags().String("config", "", "path to a config file read by viper")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(allocCmd(), collectCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCollector() (*gc.Collector, error) {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	cfg := gc.LoadConfig(v, 0)
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return gc.NewCollector(
		gc.WithLogger(log),
		gc.WithMaxTotalMemory(cfg.MaxTotalMemory),
		gc.WithDefaultCollectInterval(cfg.DefaultCollectInterval),
	)
}

func allocCmd() *cobra.Command {
	var count int
	var size int
	var retainFraction float64

	cmd := &cobra.Command{
		Use:   "alloc",
		Short: "Allocate a batch of small objects, optionally retaining a fraction of them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCollector()
			if err != nil {
				return err
			}
			m := c.NewMutator()
			defer m.Close()

			typ := leafType{size: uintptr(size)}
			var retained []gc.Cell
			for i := 0; i < count; i++ {
				cell, err := m.Alloc(typ.Size(), typ)
				if err != nil {
					return err
				}
				if retainFraction > 0 && float64(i)*retainFraction >= float64(len(retained)) {
					retained = append(retained, cell)
				}
			}

			stats := c.Stats()
			fmt.Printf("allocated %d objects of %d bytes; retained %d\n", count, size, len(retained))
			printStats(stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100000, "number of objects to allocate")
	cmd.Flags().IntVar(&size, "size", 32, "payload size in bytes")
	cmd.Flags().Float64Var(&retainFraction, "retain-fraction", 0, "fraction of allocated objects to keep reachable")
	return cmd
}

func collectCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a single collection cycle on a freshly constructed collector.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCollector()
			if err != nil {
				return err
			}
			m := c.NewMutator()
			defer m.Close()

			kind := gc.CollectAuto
			if full {
				kind = gc.CollectFull
			}
			c.Collect(m, kind)
			printStats(c.Stats())
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "force a full collection")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print a freshly constructed collector's baseline counters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCollector()
			if err != nil {
				return err
			}
			printStats(c.Stats())
			return nil
		},
	}
}

func printStats(s gc.Stats) {
	fmt.Printf("alloc_bytes=%d live_bytes=%d interval=%d quick_cycles=%d full_cycles=%d pages_in_use=%d\n",
		s.AllocBytes, s.LiveBytes, s.Interval, s.QuickCycles, s.FullCycles, s.PagesInUse)
}

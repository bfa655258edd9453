package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/btraceio/heapdump/internal/heapdump"
)

var (
	heapdumpIndexDir string
)

// heapdumpCmd is the parent for low-level heap dump queries that talk
// directly to the indexed engine, bypassing the report-writing analyze
// pipeline. Useful for ad-hoc investigation against one dump.
var heapdumpCmd = &cobra.Command{
	Use:   "heapdump",
	Short: "Low-level queries against a heap dump's on-disk index",
	Long: `heapdump runs single queries directly against internal/heapdump's
index for one dump, without generating a full analysis report. Use
'analyze -m java-heap' instead when you want the full report with
suggestions and output files.`,
}

var heapdumpPathToRootCmd = &cobra.Command{
	Use:   "path-to-root <file> <address>",
	Short: "Print the retention path from an object to a GC root",
	Args:  cobra.ExactArgs(2),
	RunE:  runHeapdumpPathToRoot,
}

var heapdumpTopRetainedCmd = &cobra.Command{
	Use:   "top-retained <file> <n>",
	Short: "Print the n classes with the largest total shallow size",
	Long: `top-retained ranks classes by the summed shallow size of their
instances and prints the top n. For each class, retained_size is the exact
retained size of its largest instance when the dominator tree has one
(exact: true); otherwise it is the class's total shallow size (exact: false).`,
	Args: cobra.ExactArgs(2),
	RunE:  runHeapdumpTopRetained,
}

func init() {
	rootCmd.AddCommand(heapdumpCmd)
	heapdumpCmd.AddCommand(heapdumpPathToRootCmd)
	heapdumpCmd.AddCommand(heapdumpTopRetainedCmd)

	heapdumpCmd.PersistentFlags().StringVar(&heapdumpIndexDir, "index-dir", "",
		"Directory holding the dump's index files (default: <file>.idx)")
}

func openHeapdumpForQuery(ctx context.Context, path string) (*heapdump.HeapDump, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("heap dump file not found: %s", path)
	}
	opts := heapdump.DefaultOptions()
	opts.Logger = GetLogger()
	if heapdumpIndexDir != "" {
		opts.IndexDir = heapdumpIndexDir
	}
	return heapdump.Open(ctx, path, opts)
}

func runHeapdumpPathToRoot(cmd *cobra.Command, args []string) error {
	path := args[0]
	addr, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid object address %q: %w", args[1], err)
	}

	ctx := context.Background()
	dump, err := openHeapdumpForQuery(ctx, path)
	if err != nil {
		return err
	}
	defer dump.Close()

	obj, err := dump.ObjectByAddress(heapdump.Address(addr))
	if err != nil {
		return fmt.Errorf("no object at address 0x%x: %w", addr, err)
	}

	steps, err := dump.PathToGCRoot(ctx, obj.ID32)
	if err != nil {
		return fmt.Errorf("path to gc root: %w", err)
	}

	if len(steps) == 0 {
		fmt.Println("object is not reachable from any GC root")
		return nil
	}

	for i, step := range steps {
		className := "<unknown>"
		if o, err := dump.ObjectByID32(step.ObjectID32); err == nil {
			if cls, ok := dump.ClassByID32(o.ClassID32); ok {
				className = cls.Name
			}
		}
		field := step.FieldName
		if field == "" {
			field = "(root)"
		}
		fmt.Printf("%2d. %-40s via %s\n", i, className, field)
	}
	return nil
}

type topRetainedClass struct {
	ClassName    string `json:"class_name"`
	RetainedSize int64  `json:"retained_size"`
	Exact        bool   `json:"exact"`
}

func runHeapdumpTopRetained(cmd *cobra.Command, args []string) error {
	path := args[0]
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid n %q: must be a positive integer", args[1])
	}

	ctx := context.Background()
	dump, err := openHeapdumpForQuery(ctx, path)
	if err != nil {
		return err
	}
	defer dump.Close()

	totals := make(map[int32]int64)
	biggest := make(map[int32]heapdump.ID32)
	biggestSize := make(map[int32]int64)

	err = dump.StreamAll(func(o *heapdump.HeapObject) error {
		totals[o.ClassID32] += o.ShallowSize
		if o.ShallowSize > biggestSize[o.ClassID32] {
			biggestSize[o.ClassID32] = o.ShallowSize
			biggest[o.ClassID32] = o.ID32
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning dump: %w", err)
	}

	type classTotal struct {
		classID int32
		total   int64
	}
	ordered := make([]classTotal, 0, len(totals))
	for id, total := range totals {
		ordered = append(ordered, classTotal{id, total})
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].total > ordered[i].total {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	if n < len(ordered) {
		ordered = ordered[:n]
	}

	out := make([]topRetainedClass, 0, len(ordered))
	for _, ct := range ordered {
		className := "<unknown>"
		if cls, ok := dump.ClassByID32(ct.classID); ok {
			className = cls.Name
		}
		retained := ct.total
		exact := false
		if rep, ok := biggest[ct.classID]; ok {
			if exactSize, ok := dump.ExactRetainedSize(rep); ok {
				retained = exactSize
				exact = true
			}
		}
		out = append(out, topRetainedClass{ClassName: className, RetainedSize: retained, Exact: exact})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

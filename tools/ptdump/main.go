// Command ptdump prints the translations held in a raw physical memory dump
// of a running kernel, decoding the tables the same way the kernel does.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"pios/kernel/mm"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

// mapDump maps the dump file read-only.
func mapDump(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening dump")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening dump")
	}
	if info.Size() == 0 {
		return nil, nil, errors.Newf("%s: empty dump", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "mapping %s", path)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}

func printMappings(w io.Writer, name string, mappings []mapping) {
	fmt.Fprintf(w, "%s half:\n", name)
	for _, m := range mappings {
		fmt.Fprintf(w, "  0x%016x-0x%016x -> 0x%012x %-10s %s\n",
			uint64(m.va), uint64(m.end()), uint64(m.pa), m.mt, m.kind)
	}
}

func run(dumpPath string, base, ttbr0, ttbr1 uint64, merge bool, w io.Writer) error {
	data, unmap, err := mapDump(dumpPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := unmap(); err != nil {
			slog.Warn("unmapping dump", "err", err)
		}
	}()

	mem := physMemory{base: mm.PhysicalAddress(base), data: data}
	for _, root := range []struct {
		name   string
		ttbr   uint64
		higher bool
	}{{"lower", ttbr0, false}, {"higher", ttbr1, true}} {
		if root.ttbr == 0 {
			continue
		}

		rootPA := mm.PhysicalAddress(root.ttbr &^ (uint64(mm.PageSize) - 1) & mm.MaxPhysicalAddress)
		mappings, err := walkRoot(mem, rootPA, root.higher)
		if err != nil {
			return errors.Wrapf(err, "walking %s root table", root.name)
		}
		slog.Debug("decoded root table", "half", root.name, "root", fmt.Sprintf("0x%x", uint64(rootPA)), "entries", len(mappings))

		if merge {
			mappings = coalesce(mappings)
		}
		printMappings(w, root.name, mappings)
	}
	return nil
}

func main() {
	var (
		dumpPath = flag.String("dump", "", "raw physical memory dump")
		base     = flag.Uint64("base", 0, "physical address of the first byte in the dump")
		ttbr0    = flag.Uint64("ttbr0", 0, "TTBR0_EL1 value (0 skips the lower half)")
		ttbr1    = flag.Uint64("ttbr1", 0, "TTBR1_EL1 value (0 skips the higher half)")
		merge    = flag.Bool("merge", true, "merge contiguous mappings")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *dumpPath == "" {
		slog.Error("missing -dump")
		os.Exit(2)
	}

	if err := run(*dumpPath, *base, *ttbr0, *ttbr1, *merge, os.Stdout); err != nil {
		slog.Error("ptdump failed", "err", err)
		os.Exit(1)
	}
}

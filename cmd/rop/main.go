// The rop tool locates return-oriented-programming gadgets in ELF, PE and
// raw binary executables.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/format"
	"github.com/mewmew/rop/format/raw"
	"github.com/mewmew/rop/program"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
)

var (
	// dbg is a logger which logs debug/progress messages with "rop:" prefix
	// to standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("rop:")+" ", 0)
	// warn is a logger which logs non-fatal diagnostics.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

func main() {
	app := cli.NewApp()
	app.Name = "rop"
	app.Usage = "locate return-oriented-programming gadgets in a binary"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "binary executable to scan",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "rop",
			Value: 10,
			Usage: "maximum preamble depth (in bytes) to search backwards from each terminator",
		},
		&cli.StringFlag{
			Name:  "raw",
			Usage: "force raw (headerless) parsing at the given architecture: x86 or x64",
		},
		&cli.StringFlag{
			Name:  "raw-base",
			Value: "0x0",
			Usage: "base virtual address for --raw (hex, e.g. 0x8048000)",
		},
		&cli.BoolFlag{
			Name:  "att",
			Usage: "render instructions using AT&T syntax instead of Intel",
		},
		&cli.BoolFlag{
			Name:  "fgkaslr",
			Usage: "drop gadgets whose occurrences fall inside a randomisable .text.* sub-region",
		},
		&cli.StringFlag{
			Name:  "fgkaslr-regions",
			Usage: "JSON file overriding the named regions used for --fgkaslr (required for --raw, since raw files carry no section metadata)",
		},
		&cli.StringFlag{
			Name:  "search-hexa",
			Usage: "search for a literal hex byte pattern instead of scanning for gadgets, e.g. 90c3",
		},
		&cli.IntFlag{
			Name:  "v",
			Usage: "verbosity level (0-3); a higher number prints more format-specific detail",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	opts := program.Options{Syntax: disx86.Intel}
	if c.Bool("att") {
		opts.Syntax = disx86.ATT
	}
	if rawArch := c.String("raw"); rawArch != "" {
		arch, err := parseRawArch(rawArch)
		if err != nil {
			return err
		}
		var baseVA bin.Addr
		if err := baseVA.Set(c.String("raw-base")); err != nil {
			return errors.Wrap(err, "invalid --raw-base")
		}
		opts.RawArch = &program.RawArch{Arch: arch, BaseVA: baseVA}
	}
	if regionsPath := c.String("fgkaslr-regions"); regionsPath != "" {
		regions, err := parseNamedRegions(regionsPath)
		if err != nil {
			return err
		}
		opts.NamedRegionsOverride = regions
	}

	p, err := program.Open(c.String("file"), opts)
	if err != nil {
		return err
	}
	defer p.Close()

	p.DisplayInformation(format.Verbosity(c.Int("v")))

	if pattern := c.String("search-hexa"); pattern != "" {
		needle, err := parseHexPattern(pattern)
		if err != nil {
			return err
		}
		return p.SearchAndDisplay(needle)
	}

	depth := c.Int("rop")
	var gadgets *gadgetSet
	if c.Bool("fgkaslr") {
		gadgets = (*gadgetSet)(p.FindFGKASLRCompatibleGadgets(depth))
	} else {
		gadgets = (*gadgetSet)(p.FindGadgets(depth))
	}
	gadgets.display(os.Stdout)
	return nil
}

// parseRawArch maps the --raw flag's textual argument to a raw.Arch.
func parseRawArch(s string) (raw.Arch, error) {
	switch strings.ToLower(s) {
	case "x86":
		return raw.ArchX86, nil
	case "x64":
		return raw.ArchX64, nil
	default:
		return 0, errors.Errorf("unrecognized --raw architecture %q (want x86 or x64)", s)
	}
}

// parseHexPattern decodes a hex-encoded byte pattern, e.g. "90c3".
func parseHexPattern(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 != 0 {
		return nil, errors.Errorf("invalid hex pattern %q: odd length", s)
	}
	buf := make([]byte, len(s)/2)
	for i := range buf {
		if _, err := fmt.Sscanf(s[2*i:2*i+2], "%02x", &buf[i]); err != nil {
			return nil, errors.Wrapf(err, "invalid hex pattern %q", s)
		}
	}
	return buf, nil
}

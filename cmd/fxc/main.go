// Command fxc is the fixed-point shader compiler CLI. It reads a textual
// IR module that computes on f32, rewrites it to Q16.16 fixed-point and
// prints the result.
//
// Usage:
//
//	fxc [options] <input.fx>
//
// Examples:
//
//	fxc shader.fx                 # Transform and print fixed-point IR
//	fxc -o shader.fx32 shader.fx  # Transform to a file
//	fxc -emit rv32 shader.fx      # Disassemble the generated RV32 code
//	fxc -test shader.fx           # Run the fixture's check directives
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/light-player/fxc/fix32"
	"github.com/light-player/fxc/ir"
	"github.com/light-player/fxc/runtest"
	"github.com/light-player/fxc/rv32"
	"github.com/light-player/fxc/rvgen"
)

var (
	output  = flag.String("o", "", "output file (default: stdout)")
	emit    = flag.String("emit", "ir", "output form: ir or rv32")
	test    = flag.Bool("test", false, "run the input's check directives on all backends")
	workers = flag.Int("workers", 4, "worker count for -test")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	inputPath := args[0]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	if *test {
		runFixture(inputPath, string(source))
		return
	}

	floatMod, err := ir.ParseModuleFile(inputPath, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}
	if errs := ir.Validate(floatMod); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "Invalid module: %v\n", e)
		}
		os.Exit(1)
	}

	fixedMod, err := fix32.Transform(floatMod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Transform error: %v\n", err)
		os.Exit(1)
	}

	var out string
	switch *emit {
	case "ir":
		out = fixedMod.Format()
	case "rv32":
		img, err := rvgen.Generate(fixedMod)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Codegen error: %v\n", err)
			os.Exit(1)
		}
		out = disassemble(img)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown -emit form %q\n", *emit)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		return
	}
	os.Stdout.WriteString(out)
}

func runFixture(path, source string) {
	f, err := runtest.ParseFixture(path, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fixture error: %v\n", err)
		os.Exit(1)
	}
	failures := f.Run(*workers)
	for _, failure := range failures {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", failure)
	}
	if len(failures) > 0 {
		os.Exit(1)
	}
	fmt.Printf("ok: %d checks\n", len(f.Checks))
}

// disassemble renders the image with function entry labels interleaved.
func disassemble(img *rvgen.Image) string {
	entryNames := make(map[uint32]string, len(img.Entries))
	for name, off := range img.Entries {
		entryNames[off] = name
	}
	var sb strings.Builder
	for off := 0; off+4 <= len(img.Code); off += 4 {
		if name, ok := entryNames[uint32(off)]; ok {
			fmt.Fprintf(&sb, "\n%s:\n", name)
		}
		word := binary.LittleEndian.Uint32(img.Code[off:])
		fmt.Fprintf(&sb, "  %06x:  %08x  %s\n", off, word, rv32.Disassemble(uint32(off), word))
	}
	return sb.String()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fxc [options] <input.fx>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  fxc shader.fx              Print the fixed-point IR\n")
	fmt.Fprintf(os.Stderr, "  fxc -emit rv32 shader.fx   Print the RV32 disassembly\n")
	fmt.Fprintf(os.Stderr, "  fxc -test shader.fx        Run check directives\n")
}

// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Compile and evaluate shader files.
//  --sx <file>        Compiles and evaluates the shaders in 'test/shaders/<file>.sx'.
//  --all              Does every file in 'test/shaders'.
//  --shader <name>    Only uses the named shader.
//  --profile <name>   Hardware profile, default from SHADERALLOC_PROFILE or gen4.
//  --profiles <file>  Additional hardware profiles.
//  --list             Prints the allocated code.
//  --jobs <n>         Files compiled at once.
//
// Each shader's test cases are run before allocation and again on the
// allocated code; both must produce the expected colors.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/xyproto/env/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/s48/shaderalloc/front"
	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/regalloc"
	"github.com/s48/shaderalloc/shader"
)

const shaderDir = "test/shaders"

func main() {
	sxFilename := flag.String("sx", "", "shader file")
	all := flag.Bool("all", false, "run every shader file")
	shaderName := flag.String("shader", "", "shader name")
	profileName := flag.String("profile", "", "hardware profile")
	profileFile := flag.String("profiles", "", "extra hardware profiles")
	list := flag.Bool("list", false, "print allocated code")
	jobs := flag.Int("jobs", runtime.NumCPU(), "files compiled at once")
	flag.Parse()

	setupLogging()

	profiles := hw.MakeProfiles()
	if *profileFile != "" {
		if err := profiles.LoadFile(*profileFile); err != nil {
			fatal(err)
		}
	}
	if *profileName != "" {
		os.Setenv("SHADERALLOC_PROFILE", *profileName)
	}
	hardware, err := profiles.FromEnv()
	if err != nil {
		fatal(err)
	}

	files := []string{}
	switch {
	case *all:
		files, err = filepath.Glob(filepath.Join(shaderDir, "*.sx"))
		if err != nil {
			fatal(err)
		}
	case *sxFilename != "":
		files = append(files, filepath.Join(shaderDir, *sxFilename+".sx"))
	default:
		fmt.Fprintf(os.Stderr, "need --sx <file> or --all\n")
		os.Exit(2)
	}

	reports := make([]*reportT, len(files))
	var bar *progressbar.ProgressBar
	if 1 < len(files) && term.IsTerminal(int(os.Stdout.Fd())) {
		bar = progressbar.Default(int64(len(files)), "compiling")
	}
	var group errgroup.Group
	group.SetLimit(max(1, *jobs))
	for i, file := range files {
		group.Go(func() error {
			reports[i] = runFile(file, *shaderName, hardware, *list)
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	group.Wait()

	failures := 0
	for _, report := range reports {
		os.Stdout.Write(report.out.Bytes())
		failures += report.failures
	}
	if failures != 0 {
		fmt.Printf("%s\n", highlight(fmt.Sprintf("%d failures", failures)))
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelWarn
	switch strings.ToLower(env.Str("SHADERALLOC_LOG", "")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	regalloc.SetLogger(logger)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", highlight(err.Error()))
	os.Exit(1)
}

func highlight(text string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	return ansi.Style{}.Bold().String() + text + ansi.ResetStyle
}

//----------------------------------------------------------------

type reportT struct {
	out      bytes.Buffer
	failures int
}

func (report *reportT) fail(format string, args ...any) {
	fmt.Fprintf(&report.out, "  %s\n", highlight(fmt.Sprintf(format, args...)))
	report.failures += 1
}

// Compiles and runs every shader in one file.  Each file gets its own
// programs and allocator state, so files can be done in parallel.

func runFile(file string, only string, hardware *hw.HardwareT, list bool) *reportT {
	report := &reportT{}
	shaders, err := front.ReadFile(file, hardware)
	if err != nil {
		report.fail("%s", err)
		return report
	}
	for _, source := range shaders {
		if only != "" && source.Program.Name != only {
			continue
		}
		runShader(source, hardware, list, report)
	}
	return report
}

func runShader(source *front.ShaderT, hardware *hw.HardwareT, list bool, report *reportT) {
	name := source.Program.Name
	fmt.Fprintf(&report.out, "running '%s' tests\n", name)
	result, err := regalloc.Compile(source.Program, hardware)
	if err != nil {
		report.fail("%s: %s", name, err)
		return
	}
	fmt.Fprintf(&report.out, "  %d registers, %d spills, %d scratch bytes, %d iterations\n",
		result.RegistersUsed, result.Spills, result.ScratchBytes, result.Iterations)
	if list {
		shader.PpProgram(result.Program, &report.out)
	}
	for i, test := range source.Tests {
		options := shader.EvalOptionsT{Inputs: test.Inputs}
		before, err := shader.Evaluate(source.Program, options)
		if err != nil {
			report.fail("test %d: %s", i, err)
			continue
		}
		options.RegisterWidth = hardware.RegisterWidth()
		after, err := shader.Evaluate(result.Program, options)
		if err != nil {
			report.fail("test %d after allocation: %s", i, err)
			continue
		}
		checkOutputs(report, i, "", test.Outputs, before.Outputs)
		checkOutputs(report, i, " after allocation", test.Outputs, after.Outputs)
		checkOutputs(report, i, " compared with unallocated code", before.Outputs, after.Outputs)
	}
}

const tolerance = 1e-4

func checkOutputs(report *reportT, i int, when string, expected, got map[int][4]float32) {
	targets := []int{}
	for target := range expected {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		want := expected[target]
		have, found := got[target]
		if !found {
			report.fail("test %d%s: nothing written to target %d", i, when, target)
			continue
		}
		for k := range want {
			if tolerance < math.Abs(float64(want[k]-have[k])) {
				report.fail("test %d%s: target %d is %v but expected %v", i, when, target, have, want)
				break
			}
		}
	}
}

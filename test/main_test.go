// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/s48/shaderalloc/hw"
)

func TestCheckOutputs(t *testing.T) {
	report := &reportT{}
	expected := map[int][4]float32{0: {1, 2, 3, 4}, 1: {0, 0, 0, 1}}
	checkOutputs(report, 0, "", expected, map[int][4]float32{0: {1, 2, 3.00001, 4}, 1: {0, 0, 0, 1}})
	if report.failures != 0 {
		t.Errorf("close outputs failed:\n%s", report.out.String())
	}
	checkOutputs(report, 1, "", expected, map[int][4]float32{0: {1, 2, 3.5, 4}})
	if report.failures != 2 {
		t.Errorf("%d failures:\n%s", report.failures, report.out.String())
	}
	if !strings.Contains(report.out.String(), "nothing written to target 1") {
		t.Errorf("missing target not reported:\n%s", report.out.String())
	}
}

func TestRunFile(t *testing.T) {
	hardware, err := hw.MakeProfiles().Lookup("gen6")
	if err != nil {
		t.Fatal(err)
	}
	report := runFile(filepath.Join("shaders", "flow.sx"), "", hardware, true)
	if report.failures != 0 {
		t.Errorf("flow.sx failed:\n%s", report.out.String())
	}
	for _, name := range []string{"choose", "fact", "nested"} {
		if !strings.Contains(report.out.String(), "running '"+name+"' tests") {
			t.Errorf("%s was not run:\n%s", name, report.out.String())
		}
	}

	report = runFile(filepath.Join("shaders", "flow.sx"), "fact", hardware, false)
	if strings.Contains(report.out.String(), "choose") {
		t.Errorf("ran more than the named shader:\n%s", report.out.String())
	}
	report = runFile(filepath.Join("shaders", "missing.sx"), "", hardware, false)
	if report.failures != 1 {
		t.Errorf("missing file gave %d failures", report.failures)
	}
}

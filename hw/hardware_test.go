// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package hw

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestBuiltin(t *testing.T) {
	profiles := MakeProfiles()
	for _, name := range []string{"gen4", "gen5", "gen5-simd16", "gen6", "gen4-trivial"} {
		if !slices.Contains(profiles.Names(), name) {
			t.Errorf("no %s profile", name)
		}
	}
	wide, err := profiles.Lookup("gen5-simd16")
	if err != nil {
		t.Fatal(err)
	}
	if wide.RegisterWidth() != 2 || wide.ScratchStride() != 64 || wide.Budget(2) != 63 || wide.Spilling {
		t.Errorf("gen5-simd16: width %d, stride %d, budget %d",
			wide.RegisterWidth(), wide.ScratchStride(), wide.Budget(2))
	}
	gen5, _ := profiles.Lookup("gen5")
	if !gen5.AlignedPairs || gen5.JumpScale != 2 || gen5.Budget(2) != 126 {
		t.Errorf("gen5: %+v", gen5)
	}
	trivial, _ := profiles.Lookup("gen4-trivial")
	if trivial.Allocator != AllocatorTrivial {
		t.Errorf("gen4-trivial uses the %s allocator", trivial.Allocator)
	}
}

func TestLookup(t *testing.T) {
	profiles := MakeProfiles()
	first, err := profiles.Lookup("gen4")
	if err != nil {
		t.Fatal(err)
	}
	first.MaxGRF = 3
	second, _ := profiles.Lookup("gen4")
	if second.MaxGRF != 128 {
		t.Error("modifying a looked-up profile changed the profile")
	}
	if _, err := profiles.Lookup("gen9"); !errors.Is(err, ErrConfig) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SHADERALLOC_PROFILE", "gen5")
	t.Setenv("SHADERALLOC_MAX_GRF", "64")
	t.Setenv("SHADERALLOC_NO_SPILL", "true")
	hardware, err := MakeProfiles().FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if hardware.Name != "gen5" || hardware.MaxGRF != 64 || hardware.Spilling || !hardware.AlignedPairs {
		t.Errorf("got %+v", hardware)
	}

	t.Setenv("SHADERALLOC_DISPATCH_WIDTH", "12")
	if _, err := MakeProfiles().FromEnv(); !errors.Is(err, ErrConfig) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestDefaultProfile(t *testing.T) {
	t.Setenv("SHADERALLOC_PROFILE", "")
	os.Unsetenv("SHADERALLOC_PROFILE")
	hardware, err := MakeProfiles().FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if hardware.Name != DefaultProfile {
		t.Errorf("got profile %s", hardware.Name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := []byte(`
- name: gen4
  generation: 4
  max_grf: 16
  dispatch_width: 8
  spilling: true
  max_sources: 3
  jump_scale: 1
  max_if_depth: 4
  max_loop_depth: 4
  allocator: graph
- name: small
  generation: 6
  max_grf: 24
  dispatch_width: 16
  max_sources: 2
  jump_scale: 2
  max_if_depth: 4
  max_loop_depth: 4
  allocator: trivial
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	profiles := MakeProfiles()
	if err := profiles.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	gen4, _ := profiles.Lookup("gen4")
	small, err := profiles.Lookup("small")
	if err != nil {
		t.Fatal(err)
	}
	if gen4.MaxGRF != 16 || small.Budget(0) != 12 || small.MaxSources != 2 {
		t.Errorf("gen4 %+v, small %+v", gen4, small)
	}
	if err := profiles.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loading a missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	bad := []string{
		"- name: x\n  max_grf: 0\n  dispatch_width: 8\n  max_sources: 3\n  jump_scale: 1\n  max_if_depth: 1\n  max_loop_depth: 1\n  allocator: graph\n",
		"- name: x\n  max_grf: 8\n  dispatch_width: 8\n  max_sources: 4\n  jump_scale: 1\n  max_if_depth: 1\n  max_loop_depth: 1\n  allocator: graph\n",
		"- name: x\n  max_grf: 8\n  dispatch_width: 8\n  max_sources: 3\n  jump_scale: 1\n  max_if_depth: 1\n  max_loop_depth: 1\n  allocator: linear\n",
		"- name: [x\n",
	}
	for _, text := range bad {
		if _, err := ParseProfiles([]byte(text)); !errors.Is(err, ErrConfig) {
			t.Errorf("%q: expected a configuration error, got %v", text, err)
		}
	}
}

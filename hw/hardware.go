// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Hardware descriptions.  Everything the allocator and the emitter
// need to know about the target comes from a HardwareT: the size of
// the register file, the dispatch width, and which features the
// generation has.  Built-in profiles are read from an embedded YAML
// document; more can be loaded from files, and any field can be
// overridden from the environment.

package hw

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

const (
	AllocatorGraph   = "graph"
	AllocatorTrivial = "trivial"
)

type HardwareT struct {
	Name               string `yaml:"name"`
	Generation         int    `yaml:"generation"`
	MaxGRF             int    `yaml:"max_grf"`
	DispatchWidth      int    `yaml:"dispatch_width"`
	AlignedPairs       bool   `yaml:"aligned_pairs"`
	Spilling           bool   `yaml:"spilling"`
	MaxSources         int    `yaml:"max_sources"`
	JumpScale          int    `yaml:"jump_scale"`
	MaxIfDepth         int    `yaml:"max_if_depth"`
	MaxLoopDepth       int    `yaml:"max_loop_depth"`
	Allocator          string `yaml:"allocator"`
	MaxSpillIterations int    `yaml:"max_spill_iterations"` // 0 means no limit
}

var ErrConfig = errors.New("invalid hardware configuration")

// Hardware registers per unit of allocation.  An 8-wide register holds
// one float per channel, so wider dispatch needs more of them.
func (hardware *HardwareT) RegisterWidth() int {
	return hardware.DispatchWidth / 8
}

// Bytes of scratch memory per spilled unit.
func (hardware *HardwareT) ScratchStride() int {
	return 32 * hardware.RegisterWidth()
}

// Allocatable units once 'payload' registers are reserved.
func (hardware *HardwareT) Budget(payload int) int {
	return (hardware.MaxGRF - payload) / hardware.RegisterWidth()
}

func (hardware *HardwareT) Validate() error {
	problems := []string{}
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(0 < hardware.MaxGRF, "max_grf %d must be positive", hardware.MaxGRF)
	check(hardware.DispatchWidth == 8 || hardware.DispatchWidth == 16,
		"dispatch_width %d must be 8 or 16", hardware.DispatchWidth)
	check(1 <= hardware.MaxSources && hardware.MaxSources <= 3,
		"max_sources %d must be between 1 and 3", hardware.MaxSources)
	check(0 < hardware.JumpScale, "jump_scale %d must be positive", hardware.JumpScale)
	check(0 < hardware.MaxIfDepth, "max_if_depth %d must be positive", hardware.MaxIfDepth)
	check(0 < hardware.MaxLoopDepth, "max_loop_depth %d must be positive", hardware.MaxLoopDepth)
	check(0 <= hardware.MaxSpillIterations,
		"max_spill_iterations %d must not be negative", hardware.MaxSpillIterations)
	check(hardware.Allocator == AllocatorGraph || hardware.Allocator == AllocatorTrivial,
		"allocator %q must be %q or %q", hardware.Allocator, AllocatorGraph, AllocatorTrivial)
	if len(problems) != 0 {
		return fmt.Errorf("%w: %s: %s", ErrConfig, hardware.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Overrides fields from SHADERALLOC_* environment variables.

func (hardware *HardwareT) ApplyEnv() {
	hardware.MaxGRF = env.Int("SHADERALLOC_MAX_GRF", hardware.MaxGRF)
	hardware.DispatchWidth = env.Int("SHADERALLOC_DISPATCH_WIDTH", hardware.DispatchWidth)
	hardware.JumpScale = env.Int("SHADERALLOC_JUMP_SCALE", hardware.JumpScale)
	hardware.MaxSpillIterations = env.Int("SHADERALLOC_MAX_SPILL_ITERATIONS", hardware.MaxSpillIterations)
	hardware.Allocator = env.Str("SHADERALLOC_ALLOCATOR", hardware.Allocator)
	if env.Bool("SHADERALLOC_NO_SPILL") {
		hardware.Spilling = false
	}
	if env.Bool("SHADERALLOC_NO_ALIGNED_PAIRS") {
		hardware.AlignedPairs = false
	}
}

//----------------------------------------------------------------
// Profiles

//go:embed profiles.yaml
var builtinProfiles []byte

const DefaultProfile = "gen4"

// Parses a YAML list of hardware descriptions.

func ParseProfiles(data []byte) ([]*HardwareT, error) {
	profiles := []*HardwareT{}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func Builtin() []*HardwareT {
	profiles, err := ParseProfiles(builtinProfiles)
	if err != nil {
		panic(fmt.Sprintf("built-in hardware profiles: %s", err))
	}
	return profiles
}

// A set of profiles that can be looked up by name.

type ProfilesT struct {
	profiles []*HardwareT
}

func MakeProfiles() *ProfilesT {
	return &ProfilesT{profiles: Builtin()}
}

// Adds the profiles in a YAML file.  Profiles with the same name as
// an existing one replace it.

func (set *ProfilesT) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading hardware profiles: %w", err)
	}
	profiles, err := ParseProfiles(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, profile := range profiles {
		set.add(profile)
	}
	return nil
}

func (set *ProfilesT) add(profile *HardwareT) {
	for i, existing := range set.profiles {
		if existing.Name == profile.Name {
			set.profiles[i] = profile
			return
		}
	}
	set.profiles = append(set.profiles, profile)
}

func (set *ProfilesT) Names() []string {
	names := make([]string, len(set.profiles))
	for i, profile := range set.profiles {
		names[i] = profile.Name
	}
	return names
}

// Returns a copy of the named profile, so callers can modify it.

func (set *ProfilesT) Lookup(name string) (*HardwareT, error) {
	for _, profile := range set.profiles {
		if profile.Name == name {
			result := *profile
			return &result, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown hardware profile %q (have %s)",
		ErrConfig, name, strings.Join(set.Names(), ", "))
}

// The profile named by SHADERALLOC_PROFILE, or the default one, with
// environment overrides applied.

func (set *ProfilesT) FromEnv() (*HardwareT, error) {
	hardware, err := set.Lookup(env.Str("SHADERALLOC_PROFILE", DefaultProfile))
	if err != nil {
		return nil, err
	}
	hardware.ApplyEnv()
	if err := hardware.Validate(); err != nil {
		return nil, err
	}
	return hardware, nil
}

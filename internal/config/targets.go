package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
)

// clockTimePattern matches the HH:MM bounds the statistics endpoint takes.
var clockTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// LoadTargets reads statistics target ranges from a YAML file. An empty
// path yields the built-in day/night defaults.
func LoadTargets(path string) (dexcom.StatisticsTargets, error) {
	if path == "" {
		return dexcom.DefaultTargets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dexcom.StatisticsTargets{}, fmt.Errorf("reading targets file: %w", err)
	}

	var targets dexcom.StatisticsTargets
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return dexcom.StatisticsTargets{}, fmt.Errorf("parsing targets file: %w", err)
	}

	if err := validateTargets(targets); err != nil {
		return dexcom.StatisticsTargets{}, fmt.Errorf("validating targets file: %w", err)
	}

	return targets, nil
}

func validateTargets(targets dexcom.StatisticsTargets) error {
	if len(targets.TargetRanges) == 0 {
		return fmt.Errorf("no target ranges defined")
	}

	seen := make(map[string]struct{})

	for i, tr := range targets.TargetRanges {
		if tr.Name == "" {
			return fmt.Errorf("target range %d has no name", i+1)
		}

		if _, dup := seen[tr.Name]; dup {
			return fmt.Errorf("duplicate target range name %q", tr.Name)
		}

		seen[tr.Name] = struct{}{}

		if !clockTimePattern.MatchString(tr.StartTime) {
			return fmt.Errorf("target range %q: start time %q is not HH:MM", tr.Name, tr.StartTime)
		}

		if !clockTimePattern.MatchString(tr.EndTime) {
			return fmt.Errorf("target range %q: end time %q is not HH:MM", tr.Name, tr.EndTime)
		}

		if len(tr.EGVRanges) == 0 {
			return fmt.Errorf("target range %q has no glucose bounds", tr.Name)
		}

		for _, er := range tr.EGVRanges {
			if er.Name == "" {
				return fmt.Errorf("target range %q: glucose bound with no name", tr.Name)
			}

			if er.Bound <= 0 {
				return fmt.Errorf("target range %q: bound %q must be positive", tr.Name, er.Name)
			}
		}
	}

	return nil
}

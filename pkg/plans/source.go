package plans

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrFailedToLoadTable = errors.New("failed to load plan table")
	ErrInvalidPlanTable  = errors.New("invalid plan table")
)

// LoadFile reads a plan table from a YAML file. The file maps plan names to
// feature limits, e.g.:
//
//	free:
//	  tasks: 20
//	  notes: 10
//	pro:
//	  tasks: -1
//
// This lets limit changes ship as a config deployment without a rebuild.
// Every plan must cover every metered feature so the gate never sees a
// missing entry at runtime.
func LoadFile(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadTable, err)
	}

	var parsed map[string]map[string]int64
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Join(ErrFailedToLoadTable, err)
	}

	table := make(Table, len(parsed))
	for planName, limits := range parsed {
		entry := make(Limits, len(limits))
		for feature, limit := range limits {
			if !Known(Feature(feature)) {
				return nil, errors.Join(ErrInvalidPlanTable,
					fmt.Errorf("plan %s references unknown feature %q", planName, feature))
			}
			if limit < Unlimited {
				return nil, errors.Join(ErrInvalidPlanTable,
					fmt.Errorf("plan %s has invalid limit %d for %s", planName, limit, feature))
			}
			entry[Feature(feature)] = limit
		}
		table[Name(planName)] = entry
	}

	if err := Validate(table); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that the table covers the free plan and that every listed
// plan has a limit for every metered feature.
func Validate(table Table) error {
	if _, ok := table[PlanFree]; !ok {
		return errors.Join(ErrInvalidPlanTable, errors.New("free plan is required as the fallback tier"))
	}
	for planName, limits := range table {
		for _, feature := range Features {
			if _, ok := limits[feature]; !ok {
				return errors.Join(ErrInvalidPlanTable,
					fmt.Errorf("plan %s is missing a limit for %s", planName, feature))
			}
		}
	}
	return nil
}

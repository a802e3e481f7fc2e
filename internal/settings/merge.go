package settings

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/model"
)

// Merged is the effective settings of a single step after the pipeline and
// step levels have been combined.
type Merged struct {
	// Values holds one effective object value per "category.flavor" key.
	Values model.Settings
	// NonBinding marks categories that target no active component. They
	// are preserved rather than rejected because they may address a
	// component selected at run time.
	NonBinding map[string]bool
}

// Merge combines pipeline-level and step-level settings into one effective
// map for a step. The merge is field-level, not object-level replacement:
// fields present only at the pipeline level are inherited, fields present at
// both levels take the step-level value, and fields present only at the
// step level are added.
//
// active lists the settings categories for which a backend component is
// currently configured; any other category is kept but marked non-binding.
func Merge(ctx context.Context, pipeline, step model.Settings, active map[string]bool) (*Merged, error) {
	logger := ctxlog.FromContext(ctx)

	merged := &Merged{
		Values:     make(model.Settings),
		NonBinding: make(map[string]bool),
	}

	for key, val := range pipeline {
		merged.Values[key] = val
	}
	for key, stepVal := range step {
		pipeVal, both := merged.Values[key]
		if !both {
			merged.Values[key] = stepVal
			continue
		}
		combined, err := mergeObjects(pipeVal, stepVal)
		if err != nil {
			return nil, fmt.Errorf("merging settings for %q: %w", key, err)
		}
		merged.Values[key] = combined
	}

	for key := range merged.Values {
		if !active[key] {
			logger.Debug("Settings category has no active component, keeping as non-binding.", "category", key)
			merged.NonBinding[key] = true
		}
	}

	return merged, nil
}

// mergeObjects overlays the fields of the step-level object onto the
// pipeline-level one. Both values must be object values; anything else is a
// definition error surfaced to the caller.
func mergeObjects(base, overlay cty.Value) (cty.Value, error) {
	if !base.Type().IsObjectType() || !overlay.Type().IsObjectType() {
		return cty.NilVal, fmt.Errorf("settings values must be objects, got %s and %s",
			base.Type().FriendlyName(), overlay.Type().FriendlyName())
	}

	fields := make(map[string]cty.Value)
	for name, val := range base.AsValueMap() {
		fields[name] = val
	}
	for name, val := range overlay.AsValueMap() {
		fields[name] = val
	}
	if len(fields) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(fields), nil
}

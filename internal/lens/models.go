package lens

import (
	"fmt"
	"slices"
	"strings"
)

// ModelSet is the fixed list of model identifiers callers may request. It is not modified after construction.
type ModelSet struct {
	defaultModel string
	allowed      []string
}

func NewModelSet(defaultModel string, allowed []string) (ModelSet, error) {
	defaultModel = strings.TrimSpace(defaultModel)

	models := make([]string, 0, len(allowed))
	for _, m := range allowed {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(models, m) {
			models = append(models, m)
		}
	}
	if !slices.Contains(models, defaultModel) {
		return ModelSet{}, fmt.Errorf("default model %q is not in the allowed set %v", defaultModel, models)
	}
	return ModelSet{defaultModel: defaultModel, allowed: models}, nil
}

func (m ModelSet) Default() string { return m.defaultModel }

func (m ModelSet) Contains(model string) bool { return slices.Contains(m.allowed, model) }

// Allowed returns a copy of the allowed identifiers in configured order.
func (m ModelSet) Allowed() []string { return slices.Clone(m.allowed) }

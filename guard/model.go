package guard

import "fmt"

// Model is a lock topology.
type Model int

const (
	ModelAuto Model = iota
	ModelReentrant
	ModelFair
	ModelRead
	ModelWrite
	ModelMultiple
	ModelQuorum
)

var modelNames = [...]string{
	ModelAuto:      "AUTO",
	ModelReentrant: "REENTRANT",
	ModelFair:      "FAIR",
	ModelRead:      "READ",
	ModelWrite:     "WRITE",
	ModelMultiple:  "MULTIPLE",
	ModelQuorum:    "QUORUM",
}

func (m Model) String() string {
	if m < 0 || int(m) >= len(modelNames) {
		return fmt.Sprintf("Model(%d)", int(m))
	}
	return modelNames[m]
}

// multiKey reports whether the model accepts several key expressions.
func (m Model) multiKey() bool {
	return m == ModelMultiple || m == ModelQuorum
}

// selectModel resolves ModelAuto and checks the model against the number of
// declared key expressions.
func selectModel(declared Model, keyCount int) (Model, error) {
	if keyCount == 0 {
		return 0, fmt.Errorf("%w: no lock keys declared", ErrConfiguration)
	}

	model := declared
	if model == ModelAuto {
		if keyCount > 1 {
			model = ModelQuorum
		} else {
			model = ModelReentrant
		}
	}

	if model < ModelReentrant || model > ModelQuorum {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCombination, model)
	}
	if keyCount > 1 && !model.multiKey() {
		return 0, fmt.Errorf("%w: %s declared with %d keys", ErrInvalidLockModel, model, keyCount)
	}
	return model, nil
}

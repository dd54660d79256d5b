package diff

import (
	"encoding/json"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/wI2L/jsondiff"
)

type Mode string

const (
	JSON Mode = "json"
	Text Mode = "text"
)

// Engine compares two successive representations of a resource.
//
// A nil representation means the resource has not been observed. If
// exactly one side is nil the comparison reports a change and the diff
// is the non-nil side. Byte-equal representations never change. In all
// other cases the strategy computes a patch and a change is reported
// when the patch is non-empty.
type Engine interface {
	Compare(old *string, new *string) (bool, *string, error)
}

type ComputationError struct {
	Mode Mode
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("failed to compute %s diff: %v", e.Mode, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func New(mode Mode) (Engine, error) {
	switch mode {
	case JSON, "":
		return &engine{mode: JSON, strategy: jsonPatch}, nil
	case Text:
		return &engine{mode: Text, strategy: textPatch}, nil
	default:
		return nil, fmt.Errorf("unsupported diff mode %q", mode)
	}
}

type engine struct {
	mode     Mode
	strategy func(old string, new string) (string, error)
}

func (e *engine) Compare(old *string, new *string) (bool, *string, error) {
	switch {
	case old == nil && new == nil:
		return false, nil, nil
	case old == nil:
		return true, new, nil
	case new == nil:
		return true, old, nil
	case *old == *new:
		return false, nil, nil
	}

	patch, err := e.strategy(*old, *new)
	if err != nil {
		return false, nil, &ComputationError{Mode: e.mode, Err: err}
	}

	if patch == "" {
		return false, nil, nil
	}

	return true, &patch, nil
}

// jsonPatch returns an RFC 6902 patch, or the empty string when the
// documents are semantically equal.
func jsonPatch(old string, new string) (string, error) {
	patch, err := jsondiff.CompareJSON([]byte(old), []byte(new))
	if err != nil {
		return "", err
	}

	if len(patch) == 0 {
		return "", nil
	}

	b, err := json.Marshal(patch)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func textPatch(old string, new string) (string, error) {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(old, new, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	return dmp.PatchToText(dmp.PatchMake(old, diffs)), nil
}

// Package checkpoint loads trained network parameters from NumPy archives and adapts their
// names to the ones the inference graph expects.
package checkpoint

import (
	"archive/zip"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gorgonia.org/tensor"

	"go.viam.com/semseg/ml"
)

// Reserved checkpoint entries holding the per-channel input normalization.
const (
	MeanKey = "mean"
	StdKey  = "std"
)

var (
	// ErrDuplicateKey is returned when two checkpoint entries map onto the same name.
	ErrDuplicateKey = errors.New("duplicate parameter name after key mapping")
	// ErrMissingParameter is returned when a required parameter is absent after key mapping.
	ErrMissingParameter = errors.New("missing required parameter")
)

// Checkpoint maps parameter names to their values. Values are shared, never copied, and must not
// be mutated once loaded.
type Checkpoint ml.Tensors

// Names returns the parameter names, sorted.
func (cp Checkpoint) Names() []string {
	return ml.Tensors(cp).Names()
}

// Load reads a NumPy .npz archive (as written by numpy.savez) into a Checkpoint. Every
// "<name>.npy" member becomes the parameter "<name>".
func Load(filename string) (Checkpoint, error) {
	archive, err := zip.OpenReader(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open checkpoint %q", filename)
	}
	defer utils.UncheckedErrorFunc(archive.Close)

	cp := Checkpoint{}
	for _, member := range archive.File {
		if member.FileInfo().IsDir() || path.Ext(member.Name) != ".npy" {
			continue
		}
		name := strings.TrimSuffix(member.Name, ".npy")
		t, err := readMember(member)
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint %q: cannot read %q", filename, name)
		}
		cp[name] = t
	}
	if len(cp) == 0 {
		return nil, errors.Errorf("checkpoint %q holds no parameters", filename)
	}
	return cp, nil
}

func readMember(member *zip.File) (*tensor.Dense, error) {
	r, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(r.Close)
	t := new(tensor.Dense)
	if err := t.ReadNpy(r); err != nil {
		return nil, err
	}
	return t, nil
}

// StripPrefix replaces every occurrence of prefix in every key with the empty string. It is a
// literal find-and-replace, not an anchored prefix strip. Values are passed through unchanged.
// When two keys collapse onto one name, the key that sorts last wins; use KeyMapping.Apply to
// reject such collisions instead.
func StripPrefix(cp Checkpoint, prefix string) Checkpoint {
	out := make(Checkpoint, len(cp))
	for _, key := range cp.Names() {
		newKey := key
		if prefix != "" {
			newKey = strings.ReplaceAll(key, prefix, "")
		}
		out[newKey] = cp[key]
	}
	return out
}

// Rule is a literal substring replacement applied to checkpoint keys.
type Rule struct {
	Old string
	New string
}

// KeyMapping is an ordered list of rules turning checkpoint keys into the canonical parameter
// names the graph expects.
type KeyMapping []Rule

// DefaultKeyMapping drops the "model." wrapper that training code adds around the network.
var DefaultKeyMapping = KeyMapping{{Old: "model.", New: ""}}

// Canonical returns the canonical name of a checkpoint key.
func (km KeyMapping) Canonical(key string) string {
	for _, rule := range km {
		if rule.Old == "" {
			continue
		}
		key = strings.ReplaceAll(key, rule.Old, rule.New)
	}
	return key
}

// Apply renames every key of cp and checks that each name in required is present afterwards.
// It fails with ErrDuplicateKey if two keys map onto the same name, and with
// ErrMissingParameter listing every required name that is absent.
func (km KeyMapping) Apply(cp Checkpoint, required []string) (Checkpoint, error) {
	out := make(Checkpoint, len(cp))
	sources := make(map[string]string, len(cp))
	for _, key := range cp.Names() {
		newKey := km.Canonical(key)
		if prev, ok := sources[newKey]; ok {
			return nil, errors.Wrapf(ErrDuplicateKey, "%q and %q both map to %q", prev, key, newKey)
		}
		sources[newKey] = key
		out[newKey] = cp[key]
	}

	var missing []string
	for _, name := range required {
		if _, ok := out[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) != 0 {
		sort.Strings(missing)
		return nil, errors.Wrapf(ErrMissingParameter, "%s", strings.Join(missing, ", "))
	}
	return out, nil
}

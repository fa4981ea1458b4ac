package config

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Params is a flat parameter server snapshot: fully qualified names such as "/camera/width"
// mapped to their values.
type Params map[string]interface{}

// ReadParams reads a YAML parameter file after expanding environment variables in it.
func ReadParams(filePath string) (Params, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read parameter file %q", filePath)
	}
	return ParamsFromYAML(buf)
}

// ParamsFromYAML parses a YAML document of parameters. Nested mappings become namespaces, so
// {camera: {width: 640}} and {/camera/width: 640} both yield "/camera/width".
func ParamsFromYAML(data []byte) (Params, error) {
	var doc map[string]interface{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Params{}, nil
		}
		return nil, errors.Wrap(err, "failed to decode parameters from yaml")
	}
	params := Params{}
	flatten("", doc, params)
	return params, nil
}

func flatten(namespace string, doc map[string]interface{}, out Params) {
	for key, value := range doc {
		name := Join(namespace, key)
		if nested, ok := value.(map[string]interface{}); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = value
	}
}

// Join builds a fully qualified parameter name.
func Join(namespace, key string) string {
	return "/" + strings.Trim(strings.TrimRight(namespace, "/")+"/"+strings.TrimLeft(key, "/"), "/")
}

// Names returns every parameter name, sorted.
func (p Params) Names() []string {
	names := lo.Keys(map[string]interface{}(p))
	sort.Strings(names)
	return names
}

// Has reports whether name is set.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Set parses an override of the form "/name=value". Values keep YAML typing, so "640" is an int.
func (p Params) Set(assignment string) error {
	name, raw, ok := strings.Cut(assignment, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return errors.Errorf("parameter override %q is not of the form /name=value", assignment)
	}
	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		value = raw
	}
	p[Join("", strings.TrimSpace(name))] = value
	return nil
}

// GetString returns a parameter as a string.
func (p Params) GetString(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", errors.Errorf("parameter %s is not set", name)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", errors.Wrapf(err, "parameter %s", name)
	}
	return s, nil
}

// GetInt returns a parameter as an int.
func (p Params) GetInt(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, errors.Errorf("parameter %s is not set", name)
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parameter %s", name)
	}
	return i, nil
}

// Namespace returns the parameters directly under namespace, keyed by their last name segment.
func (p Params) Namespace(namespace string) map[string]interface{} {
	prefix := Join(namespace, "") + "/"
	if prefix == "//" {
		prefix = "/"
	}
	out := map[string]interface{}{}
	for name, value := range p {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out[rest] = value
	}
	return out
}

// Describe renders the parameters one per line, for logging.
func (p Params) Describe() string {
	var b strings.Builder
	for _, name := range p.Names() {
		fmt.Fprintf(&b, "%s: %v\n", name, p[name])
	}
	return b.String()
}

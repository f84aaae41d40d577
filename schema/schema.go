// Package schema validates policy configuration against the contract of its
// policy type.
//
// Validation runs in two stages. The JSON Schema stage checks required
// fields, JSON types and numeric bounds. The typed stage decodes the config
// into its policy record and checks cross-field rules such as min <= max.
// Both stages must pass; a failure reports every offending field.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/xraph/charter/policy"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrInvalidConfig is matched by every *ValidationError.
var ErrInvalidConfig = errors.New("schema: invalid policy config")

// FieldError names one offending field by dotted path.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports why a config was rejected.
type ValidationError struct {
	Type   policy.Type  `json:"type"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("invalid %s config: %s", e.Type, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrInvalidConfig) match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidConfig }

var (
	compileOnce sync.Once
	compiled    map[policy.Type]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[policy.Type]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = compileAll()
	})
	return compiled, compileErr
}

func compileAll() (map[policy.Type]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	out := make(map[policy.Type]*jsonschema.Schema)
	for _, t := range policy.Types() {
		if !t.RequiresConfig() {
			continue
		}
		raw, err := schemaFS.ReadFile("schemas/" + string(t) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", t, err)
		}
		resourceID := "inmemory://charter/" + string(t)
		if err := compiler.AddResource(resourceID, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", t, err)
		}
		s, err := compiler.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", t, err)
		}
		out[t] = s
	}
	return out, nil
}

// Document returns the raw JSON Schema for t, or nil if t takes no config.
func Document(t policy.Type) []byte {
	raw, err := schemaFS.ReadFile("schemas/" + string(t) + ".json")
	if err != nil {
		return nil
	}
	return raw
}

// Validate checks cfg against the contract of t.
//
// An empty or nil cfg is always accepted so that drafts can be created before
// their config is filled in. Types without config accept anything.
func Validate(t policy.Type, cfg map[string]any) error {
	if !t.Valid() {
		return fmt.Errorf("schema: unknown policy type %q", t)
	}
	if len(cfg) == 0 || !t.RequiresConfig() {
		return nil
	}

	all, err := schemas()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	payload, err := normalize(cfg)
	if err != nil {
		return fmt.Errorf("schema: normalize %s config: %w", t, err)
	}

	if err := all[t].Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("schema: validate %s config: %w", t, err)
		}
		return &ValidationError{Type: t, Fields: fieldErrors(ve)}
	}

	typed, err := policy.DecodeConfig(t, cfg)
	if err != nil {
		return &ValidationError{Type: t, Fields: []FieldError{{Field: "config", Reason: err.Error()}}}
	}
	if fields := checkRanges(typed); len(fields) > 0 {
		return &ValidationError{Type: t, Fields: fields}
	}
	return nil
}

// ValidateTyped checks a typed record; used for configs decoded from files.
func ValidateTyped(cfg policy.TypedConfig) error {
	m, err := policy.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return Validate(cfg.PolicyType(), m)
}

func checkRanges(cfg policy.TypedConfig) []FieldError {
	var out []FieldError
	minMax := func(field string, lo, hi int) {
		if lo > hi {
			out = append(out, FieldError{
				Field:  field,
				Reason: fmt.Sprintf("must be greater than or equal to the minimum (%d)", lo),
			})
		}
	}
	switch c := cfg.(type) {
	case *policy.ShippingConfig:
		minMax("standardDaysMax", c.StandardDaysMin, c.StandardDaysMax)
		minMax("expressDaysMax", c.ExpressDaysMin, c.ExpressDaysMax)
	case *policy.RefundConfig:
		minMax("expectedProcessingDaysMax", c.ExpectedProcessingDaysMin, c.ExpectedProcessingDaysMax)
	}
	return out
}

// normalize round-trips through JSON so values from YAML or Go literals
// reach the validator as the JSON types it expects.
func normalize(cfg map[string]any) (any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

var quoted = regexp.MustCompile(`['"]([^'"]+)['"]`)

// fieldErrors flattens the leaves of a jsonschema error tree.
func fieldErrors(ve *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		base := dotted(e.InstanceLocation)
		if strings.HasSuffix(e.KeywordLocation, "/required") {
			names := quoted.FindAllStringSubmatch(e.Message, -1)
			for _, n := range names {
				out = append(out, FieldError{Field: join(base, n[1]), Reason: "is required"})
			}
			if len(names) > 0 {
				return
			}
		}
		if base == "" {
			base = "config"
		}
		out = append(out, FieldError{Field: base, Reason: e.Message})
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func dotted(pointer string) string {
	p := strings.TrimPrefix(pointer, "#")
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return strings.Join(segs, ".")
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

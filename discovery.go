package flowpipe

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// tagKey is the struct tag key annotated processor discovery looks for.
// Go has no runtime annotations; a struct tag on a Transform[F]-typed
// field is this package's accepted substitute (§4.8, and see the
// discovery.go entry in DESIGN.md for why).
const tagKey = "flowpipe"

// discoverySpec is the parsed form of a single `flowpipe:"..."` tag.
type discoverySpec struct {
	name     string
	priority int
	policy   ErrorPolicy
	hasPrio  bool
}

// parseDiscoveryTag parses a comma-separated "key=value" tag body, e.g.
// `flowpipe:"name=validate,priority=10,policy=retry"`. Unknown keys are
// rejected so a typo surfaces at discovery time instead of silently
// defaulting.
func parseDiscoveryTag(tag string) (discoverySpec, error) {
	var spec discoverySpec
	if tag == "" {
		return spec, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		var value string
		if len(kv) == 2 {
			value = strings.TrimSpace(kv[1])
		}
		switch key {
		case "name":
			spec.name = value
		case "priority":
			n, err := strconv.Atoi(value)
			if err != nil {
				return spec, fmt.Errorf("flowpipe: invalid priority %q in tag %q: %w", value, tag, err)
			}
			spec.priority = n
			spec.hasPrio = true
		case "policy":
			policy, err := parsePolicyName(value)
			if err != nil {
				return spec, fmt.Errorf("flowpipe: invalid policy %q in tag %q: %w", value, tag, err)
			}
			spec.policy = policy
		default:
			return spec, fmt.Errorf("flowpipe: unknown discovery tag key %q in %q", key, tag)
		}
	}
	return spec, nil
}

func parsePolicyName(name string) (ErrorPolicy, error) {
	switch name {
	case "", "propagate":
		return Propagate, nil
	case "suppress":
		return Suppress, nil
	case "retry":
		return Retry, nil
	case "terminate":
		return Terminate, nil
	default:
		return Propagate, fmt.Errorf("unrecognized policy %q", name)
	}
}

// DiscoveredProcessor is one annotated field found by Discover, not yet
// attached to any Pipeline.
type DiscoveredProcessor[F any] struct {
	Name      Name
	Priority  int
	Policy    ErrorPolicy
	Transform Transform[F]
}

// Discover scans target (a struct or pointer to struct) for exported
// fields of type Transform[F] tagged `flowpipe:"..."`, in field-declaration
// order. A field with an empty tag (`flowpipe:""`) is discovered using its
// Go field name and priority 0. This is this package's substitute for the
// host-language annotation processing the distilled spec describes (§4.8)
// — Go has no runtime-visible method/field annotations, only struct tags
// inspected via reflection.
func Discover[F any](target any) ([]DiscoveredProcessor[F], error) {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("flowpipe: discovery target is a nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("flowpipe: discovery target must be a struct or pointer to struct, got %s", v.Kind())
	}

	t := v.Type()
	var out []DiscoveredProcessor[F]
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(tagKey)
		if !ok {
			continue
		}
		spec, err := parseDiscoveryTag(tag)
		if err != nil {
			return nil, err
		}
		fv := v.Field(i)
		if !fv.CanInterface() {
			return nil, fmt.Errorf("flowpipe: field %s is tagged for discovery but is unexported", field.Name)
		}
		fn, ok := fv.Interface().(Transform[F])
		if !ok {
			return nil, fmt.Errorf("flowpipe: field %s is tagged for discovery but is not a Transform[F] (got %s)", field.Name, field.Type)
		}
		if fn == nil {
			return nil, fmt.Errorf("flowpipe: field %s is tagged for discovery but is nil", field.Name)
		}
		name := spec.name
		if name == "" {
			name = field.Name
		}
		out = append(out, DiscoveredProcessor[F]{
			Name:      name,
			Priority:  spec.priority,
			Policy:    spec.policy,
			Transform: fn,
		})
	}
	return out, nil
}

// AttachDiscovered runs Discover over target and adds every result to p as
// a Processor, in the order Discover returned them. It stops and returns
// the first AddProcessor error without rolling back processors already
// added.
func AttachDiscovered[F any](p *Pipeline[F], target any) error {
	discovered, err := Discover[F](target)
	if err != nil {
		return err
	}
	for _, d := range discovered {
		proc := NewProcessor(d.Name, d.Priority, d.Transform)
		if err := proc.SetErrorPolicy(d.Policy); err != nil {
			return err
		}
		if err := p.AddProcessor(proc); err != nil {
			return fmt.Errorf("flowpipe: attaching discovered processor %q: %w", d.Name, err)
		}
	}
	return nil
}

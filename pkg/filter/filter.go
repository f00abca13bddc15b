// Package filter implements the IQM's per-queue topic filtering rules:
// prefix or regex topic matching, an optional drop, and a retain-flag
// rewrite applied to messages that match.
package filter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orange-opensource/its-fabric/internal/jsonpath"
)

// Direction is which side of a queue a Filter applies to.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Kind is how a Filter matches a topic.
type Kind string

const (
	Prefix Kind = "prefix"
	Regex  Kind = "regex"
)

// RetainKind discriminates the retain-rewrite variants a Filter may
// apply to a matched message.
type RetainKind int

const (
	RetainUnset RetainKind = iota
	RetainFixedBool
	RetainFixedInt
	RetainJSONPath
)

// Retain describes how a matched message's retain flag should be
// rewritten.
type Retain struct {
	Kind     RetainKind
	Bool     bool
	Int      int
	Path     string
	Fallback *int // only meaningful when Kind == RetainJSONPath
}

// Config is the raw, unparsed configuration of one Filter, as read from
// the fabric's YAML configuration: exactly one of the four pattern
// fields must be set.
type Config struct {
	Name string `yaml:"name"`

	InPrefix  string `yaml:"in_prefix,omitempty"`
	InRegex   string `yaml:"in_regex,omitempty"`
	OutPrefix string `yaml:"out_prefix,omitempty"`
	OutRegex  string `yaml:"out_regex,omitempty"`

	Drop   bool   `yaml:"drop,omitempty"`
	Retain string `yaml:"retain,omitempty"` // "", "true"/"false", an integer, or "json:<path>[ <fallback>]"
}

// Filter matches topics against a single prefix or regex pattern set
// and, on a match, optionally drops the message or rewrites its retain
// flag.
type Filter struct {
	Name string
	Dir  Direction
	Kind Kind

	prefixes []string
	regexes  []*regexp.Regexp

	Drop   bool
	Retain Retain
}

// New builds a Filter from cfg, substituting {{instance-id}},
// {{prefix}}, {{suffix}} and any additional named placeholders (queue
// names) into every pattern line.
func New(cfg Config, instanceID, prefix, suffix string, queues map[string]string) (*Filter, error) {
	placeholders := map[string]string{
		"instance-id": instanceID,
		"prefix":      prefix,
		"suffix":      suffix,
	}
	for k, v := range queues {
		placeholders[k] = v
	}

	type candidate struct {
		dir  Direction
		kind Kind
		raw  string
	}
	candidates := []candidate{
		{In, Prefix, cfg.InPrefix},
		{In, Regex, cfg.InRegex},
		{Out, Prefix, cfg.OutPrefix},
		{Out, Regex, cfg.OutRegex},
	}

	f := &Filter{Name: cfg.Name, Drop: cfg.Drop}
	found := false
	for _, c := range candidates {
		if c.raw == "" {
			continue
		}
		if found {
			return nil, fmt.Errorf("filter %s: defines multiple patterns", cfg.Name)
		}
		found = true
		f.Dir = c.dir
		f.Kind = c.kind

		lines := nonEmptyLines(c.raw)
		for i, line := range lines {
			for ph, val := range placeholders {
				line = strings.ReplaceAll(line, "{{"+ph+"}}", val)
			}
			lines[i] = line
		}

		if c.kind == Regex {
			f.regexes = make([]*regexp.Regexp, len(lines))
			for i, l := range lines {
				re, err := regexp.Compile(l)
				if err != nil {
					return nil, fmt.Errorf("filter %s: bad regex %q: %w", cfg.Name, l, err)
				}
				f.regexes[i] = re
			}
		} else {
			f.prefixes = lines
		}
	}
	if !found {
		return nil, fmt.Errorf("filter %s: does not define patterns", cfg.Name)
	}

	retain, err := parseRetain(cfg.Retain)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", cfg.Name, err)
	}
	f.Retain = retain

	return f, nil
}

func nonEmptyLines(raw string) []string {
	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseRetain(s string) (Retain, error) {
	switch {
	case s == "":
		return Retain{Kind: RetainUnset}, nil
	case s == "true" || s == "True":
		return Retain{Kind: RetainFixedBool, Bool: true}, nil
	case s == "false" || s == "False":
		return Retain{Kind: RetainFixedBool, Bool: false}, nil
	case strings.HasPrefix(s, "json:"):
		rest := strings.TrimPrefix(s, "json:")
		if idx := strings.LastIndex(rest, " "); idx >= 0 {
			path, fallbackStr := rest[:idx], rest[idx+1:]
			if n, err := strconv.Atoi(fallbackStr); err == nil {
				return Retain{Kind: RetainJSONPath, Path: path, Fallback: &n}, nil
			}
		}
		return Retain{Kind: RetainJSONPath, Path: rest}, nil
	default:
		if n, err := strconv.Atoi(s); err == nil {
			return Retain{Kind: RetainFixedInt, Int: n}, nil
		}
		return Retain{}, fmt.Errorf("unable to parse retain value %q", s)
	}
}

// Matches reports whether topic matches this Filter's pattern set.
func (f *Filter) Matches(topic string) bool {
	switch f.Kind {
	case Prefix:
		for _, p := range f.prefixes {
			if strings.HasPrefix(topic, p) {
				return true
			}
		}
	case Regex:
		for _, re := range f.regexes {
			if re.MatchString(topic) {
				return true
			}
		}
	}
	return false
}

// Result is the outcome of applying a Filter to a message: Dropped is
// set when the message should not be forwarded at all, in which case
// Topic/Payload/Retain are meaningless.
type Result struct {
	Dropped bool
	Topic   string
	Payload []byte
	Retain  interface{}
}

// Apply matches topic against the Filter and, on a match, applies its
// drop/retain rule. A non-match passes the message through unchanged.
func (f *Filter) Apply(topic string, payload []byte, retain interface{}) Result {
	if !f.Matches(topic) {
		return Result{Topic: topic, Payload: payload, Retain: retain}
	}

	if f.Drop {
		return Result{Dropped: true}
	}

	switch f.Retain.Kind {
	case RetainFixedBool:
		retain = f.Retain.Bool
	case RetainFixedInt:
		retain = f.Retain.Int
	case RetainJSONPath:
		var data interface{}
		if err := json.Unmarshal(payload, &data); err == nil {
			if v, ok := jsonpath.GetInt(data, f.Retain.Path); ok {
				retain = v
			} else if f.Retain.Fallback != nil {
				retain = *f.Retain.Fallback
			}
		} else if f.Retain.Fallback != nil {
			retain = *f.Retain.Fallback
		}
	}

	return Result{Topic: topic, Payload: payload, Retain: retain}
}

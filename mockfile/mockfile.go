// Package mockfile loads named handler-set profiles from YAML, so the
// same canned backends tests build in Go can be served by mockwired or
// shared across repositories as data:
//
//	profiles:
//	  default:
//	    - method: GET
//	      path: /api/users
//	      status: 200
//	      json:
//	        - {id: 1, name: Ada Lovelace}
//	        - {id: 2, name: Grace Hopper}
//	  degraded:
//	    - method: GET
//	      path: /api/users
//	      status: 500
//	      json: {error: downstream unavailable}
//	    - method: GET
//	      path: /api/flaky
//	      error: network
package mockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mockwire/mockwire"
)

// DefaultProfile is the profile name served when none is selected.
const DefaultProfile = "default"

// File is the top-level mock file layout: named profiles, each an
// ordered handler list matched first to last.
type File struct {
	Profiles map[string][]Entry `yaml:"profiles"`
}

// Entry declares one handler. Exactly one response shape applies:
// a fixed response (status with an optional json or text body), a
// transport failure (error), or a sequence of steps. Sequence steps
// reuse the response fields and nothing else.
type Entry struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`

	Status  int               `yaml:"status"`
	JSON    any               `yaml:"json"`
	Text    string            `yaml:"text"`
	Headers map[string]string `yaml:"headers"`

	Delay Duration `yaml:"delay"`
	Hang  bool     `yaml:"hang"`

	Error    string        `yaml:"error"`
	Sequence []Entry       `yaml:"sequence"`
	Throttle *ThrottleSpec `yaml:"throttle"`
}

// ThrottleSpec rate-limits an entry: requests beyond burst per
// interval answer 429.
type ThrottleSpec struct {
	Interval Duration `yaml:"interval"`
	Burst    int      `yaml:"burst"`
}

// Duration reads Go duration strings such as "250ms" or "2s" from
// YAML scalars.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"250ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads a mock file from disk and compiles every profile.
func Load(path string) (map[string]*mockwire.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read mock file")
	}
	sets, err := LoadBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "mock file %s", path)
	}
	return sets, nil
}

// LoadBytes compiles mock file contents into one handler set per
// profile. Unknown YAML fields are rejected so typos surface as load
// errors instead of silently dead configuration.
func LoadBytes(data []byte) (map[string]*mockwire.Set, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "parse mock file")
	}
	if len(f.Profiles) == 0 {
		return nil, errors.New("no profiles defined")
	}

	sets := make(map[string]*mockwire.Set, len(f.Profiles))
	for name, entries := range f.Profiles {
		set := mockwire.NewSet()
		for i, entry := range entries {
			h, err := entry.handler(fmt.Sprintf("profile %q entry %d", name, i))
			if err != nil {
				return nil, err
			}
			set.Append(h)
		}
		sets[name] = set
	}
	return sets, nil
}

func (e Entry) handler(pos string) (*mockwire.Handler, error) {
	method := e.Method
	if method == "" {
		return nil, errors.Errorf("%s: method is required (use ANY to match all)", pos)
	}
	if method == "ANY" {
		method = ""
	}
	if e.Path == "" {
		return nil, errors.Errorf("%s: path is required", pos)
	}
	if e.Hang && e.Delay > 0 {
		return nil, errors.Errorf("%s: hang and delay are mutually exclusive", pos)
	}

	h, err := mockwire.NewHandler(method, e.Path)
	if err != nil {
		return nil, errors.Wrap(err, pos)
	}
	if e.Host != "" {
		h.ForHost(e.Host)
	}

	responder, err := e.responder(pos)
	if err != nil {
		return nil, err
	}
	if e.Throttle != nil {
		if e.Throttle.Interval <= 0 {
			return nil, errors.Errorf("%s: throttle interval must be positive", pos)
		}
		responder = mockwire.Throttle(e.Throttle.Interval.Std(), e.Throttle.Burst, responder)
	}
	h.Respond(responder)

	for key, value := range e.Headers {
		h.Header(key, value)
	}
	if e.Hang {
		h.Hang()
	} else if d := e.Delay.Std(); d > 0 {
		h.Delay(d)
	}
	return h, nil
}

func (e Entry) responder(pos string) (mockwire.Responder, error) {
	switch {
	case e.Error != "":
		if e.Status != 0 || e.JSON != nil || e.Text != "" || len(e.Sequence) > 0 {
			return nil, errors.Errorf("%s: error excludes status, json, text, and sequence", pos)
		}
		if e.Error == "network" {
			return mockwire.TransportError(nil), nil
		}
		return mockwire.TransportError(errors.New(e.Error)), nil

	case len(e.Sequence) > 0:
		if e.Status != 0 || e.JSON != nil || e.Text != "" {
			return nil, errors.Errorf("%s: sequence excludes a top-level response", pos)
		}
		steps := make([]mockwire.Responder, 0, len(e.Sequence))
		for i, step := range e.Sequence {
			stepPos := fmt.Sprintf("%s step %d", pos, i)
			if step.Method != "" || step.Path != "" || step.Host != "" ||
				len(step.Sequence) > 0 || step.Throttle != nil ||
				step.Delay != 0 || step.Hang || len(step.Headers) > 0 {
				return nil, errors.Errorf("%s: steps allow only status, json, text, and error", stepPos)
			}
			r, err := step.responder(stepPos)
			if err != nil {
				return nil, err
			}
			steps = append(steps, r)
		}
		return mockwire.Sequence(steps...), nil

	default:
		if e.JSON != nil && e.Text != "" {
			return nil, errors.Errorf("%s: json and text are mutually exclusive", pos)
		}
		status := e.Status
		if status == 0 {
			status = http.StatusOK
		}
		if e.JSON != nil {
			body, err := json.Marshal(e.JSON)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: encode json payload", pos)
			}
			return mockwire.Raw(status, "application/json", body), nil
		}
		if e.Text != "" {
			return mockwire.Text(status, e.Text), nil
		}
		return mockwire.Status(status), nil
	}
}

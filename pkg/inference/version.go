package inference

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultInputVersion  = 1
	defaultOutputVersion = 1
	// LatestVersion marks a descriptor interface still under development.
	LatestVersion = 0
)

// ModelVersion is decoded from a model name of the form NAME-INPUT-OUTPUT,
// where INPUT is the descriptor interface and OUTPUT the meaning of the result.
type ModelVersion struct {
	RawName       string
	Name          string
	InputVersion  int
	OutputVersion int
}

func ParseModelVersion(raw string) (ModelVersion, error) {
	v := ModelVersion{
		RawName:       raw,
		Name:          "none",
		InputVersion:  defaultInputVersion,
		OutputVersion: defaultOutputVersion,
	}
	if raw == "" {
		v.InputVersion = LatestVersion
		return v, nil
	}

	parts := strings.Split(raw, "-")
	if parts[0] != "" {
		v.Name = parts[0]
	}
	if len(parts) >= 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return v, fmt.Errorf("parsing input version of %q: %w", raw, err)
		}
		v.InputVersion = n
	}
	if len(parts) >= 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return v, fmt.Errorf("parsing output version of %q: %w", raw, err)
		}
		v.OutputVersion = n
	}
	return v, nil
}

func (v ModelVersion) String() string {
	return fmt.Sprintf("%s-%d-%d", v.Name, v.InputVersion, v.OutputVersion)
}

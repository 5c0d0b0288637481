// Package deps checks that the external programs the bot shells out to are
// installed.
package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement names an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a Requirement.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Missing returns the required (non-optional) entries that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}

// Resolve returns the absolute path command runs from. A command containing
// a path separator is checked in place; a bare name is looked up on PATH.
func Resolve(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("command not configured")
	}
	if !strings.ContainsRune(command, filepath.Separator) {
		path, err := exec.LookPath(command)
		if err != nil {
			return "", fmt.Errorf("binary %q not found", command)
		}
		return path, nil
	}
	info, err := os.Stat(command)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", command)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%q is not executable", command)
	}
	return command, nil
}

// CheckBinaries evaluates each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		path, err := Resolve(status.Command)
		if err != nil {
			status.Detail = err.Error()
		} else {
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

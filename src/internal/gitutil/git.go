// Package gitutil reads identity settings from the local git configuration.
package gitutil

import (
	"bytes"
	"os/exec"
	"strings"
)

// Runner abstracts command execution for testability.
type Runner interface {
	Run(name string, args ...string) (stdout string, stderr string, err error)
}

type defaultRunner struct{}

// Run executes the named program with args and returns stdout, stderr, and error.
func (defaultRunner) Run(name string, args ...string) (string, string, error) {
	cmd := exec.Command(name, args...)
	var out, errB bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errB
	err := cmd.Run()
	return out.String(), errB.String(), err
}

var runner Runner = defaultRunner{}

// ConfigValue returns `git config --get key`, or "" when git is missing or
// the key is unset.
func ConfigValue(key string) string {
	out, _, err := runner.Run("git", "config", "--get", key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// UserEmail returns git's user.email if it looks like an address.
func UserEmail() string {
	e := ConfigValue("user.email")
	if !strings.Contains(e, "@") || strings.ContainsAny(e, " \t") {
		return ""
	}
	return e
}

package manifest

import (
	"fmt"
	"os/exec"
	"strings"
)

// git runs a git subcommand in dir and returns its trimmed output.
func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func gitClone(url, dest string) error {
	_, err := git("", "clone", "--quiet", url, dest)
	return err
}

// gitCheckout checks out a tag, branch or commit.
func gitCheckout(dir, ref string) error {
	_, err := git(dir, "checkout", "--quiet", ref)
	return err
}

func gitFetch(dir string) error {
	_, err := git(dir, "fetch", "--quiet", "--all", "--tags")
	return err
}

// gitCurrentCommit returns the HEAD commit hash.
func gitCurrentCommit(dir string) (string, error) {
	return git(dir, "rev-parse", "HEAD")
}

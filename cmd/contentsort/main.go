package main

import (
	"os"
	"strings"

	"contentsort/internal/cli"
	"contentsort/internal/store"
)

// isItemRef reports whether a bare token names an item rather than a subcommand.
func isItemRef(s string) bool {
	s = strings.TrimSpace(s)
	return store.IsShortID(s) || strings.HasPrefix(s, "/")
}

// rewriteDirectItemLookupArgs turns `contentsort <shortid|/path>` into
// `contentsort items show <shortid|/path>`. Cobra treats the first positional token
// as a subcommand, so argv is rewritten before parsing, skipping persistent flags.
func rewriteDirectItemLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":    true,
		"--actor":  true,
		"--format": true,
		"--config": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}
	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "items", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isItemRef(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			// Unknown flags are skipped without their value so an item ref is never consumed.
			if !strings.Contains(a, "=") && !boolFlags[a] && valueFlags[a] {
				i++
			}
			continue
		}
		if isItemRef(a) {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectItemLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

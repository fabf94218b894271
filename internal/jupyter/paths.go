// Package jupyter connects gokernel to a local Jupyter installation.
package jupyter

import (
	"strings"

	"github.com/aretw0/gokernel/pkg/domain"
)

const dataHeader = "data:"

// DataPaths extracts the directories listed under the "data:" group of
// `jupyter --paths` output. Groups are introduced by unindented lines ending
// in a colon; the paths below them are indented.
func DataPaths(output []string) ([]string, error) {
	start := -1
	for i, line := range output {
		if strings.TrimSpace(line) == dataHeader {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, &domain.ConfigurationError{
			Reason: `no "data:" section in jupyter --paths output`,
			Input:  strings.Join(output, "\n"),
		}
	}

	paths := []string{}
	for _, line := range output[start:] {
		if isHeader(line) {
			break
		}
		if p := strings.TrimSpace(line); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func isHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasSuffix(trimmed, ":") {
		return false
	}
	return !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t")
}

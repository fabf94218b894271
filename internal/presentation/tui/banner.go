package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`                _                        _ `,
	`   __ _  ___   | | _____ _ __ _ __   ___| |`,
	`  / _' |/ _ \  | |/ / _ \ '__| '_ \ / _ \ |`,
	` | (_| | (_) | |   <  __/ |  | | | |  __/ |`,
	`  \__, |\___/  |_|\_\___|_|  |_| |_|\___|_|`,
	`  |___/                                    `,
}

var bannerColors = []string{"#22d3ee", "#38bdf8", "#60a5fa", "#818cf8", "#a78bfa", "#c084fc"}

// PrintBanner writes the startup banner, the version and the languages.
func PrintBanner(w io.Writer, version string, languages []string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i%len(bannerColors)])))
	}
	info := fmt.Sprintf("  %s · languages: %s · %%lsmagic lists magics, exit quits",
		strings.TrimSpace(version), strings.Join(languages, ", "))
	fmt.Fprintln(w, termenv.String(info).Faint())
	fmt.Fprintln(w)
}

package chrome

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// EnvChromePath overrides Chrome discovery
const EnvChromePath = "CATALOG_CHROME_PATH"

// FindChrome locates a Chrome or Chromium executable. An explicit path wins,
// then $CATALOG_CHROME_PATH, then standard install locations, then $PATH.
// It returns "" to let chromedp fall back to its own lookup.
func FindChrome(explicit string) string {
	for _, src := range []struct{ name, path string }{
		{"flag", explicit},
		{EnvChromePath, os.Getenv(EnvChromePath)},
	} {
		if src.path == "" {
			continue
		}
		if isExecutable(src.path) {
			log.Debug().Str("path", src.path).Str("source", src.name).Msg("Chrome found")
			return src.path
		}
		log.Warn().Str("path", src.path).Str("source", src.name).Msg("Configured Chrome path is not executable")
	}

	for _, path := range candidatePaths(runtime.GOOS, os.Getenv("HOME")) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Str("os", runtime.GOOS).Msg("Chrome found at standard location")
			return path
		}
	}

	for _, name := range []string{
		"google-chrome-stable",
		"google-chrome",
		"chromium",
		"chromium-browser",
		"chrome",
		"msedge",
	} {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, using chromedp default")
	return ""
}

func candidatePaths(goos, home string) []string {
	switch goos {
	case "darwin":
		paths := []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
		if home != "" {
			paths = append(paths, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"))
		}
		return paths
	case "windows":
		var paths []string
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base != "" {
				paths = append(paths,
					filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
					filepath.Join(base, "Microsoft", "Edge", "Application", "msedge.exe"),
				)
			}
		}
		return paths
	default:
		paths := []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/headless-shell/headless-shell",
		}
		if home != "" {
			paths = append(paths, filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"))
		}
		return paths
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

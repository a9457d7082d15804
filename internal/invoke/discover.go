package invoke

import (
	"os"
	"path/filepath"
	"strings"
)

// discovery holds a resolved CLI binary plus any args that must precede the
// real arguments (the gemini CLI is sometimes a node script).
type discovery struct {
	binary  string
	preArgs []string
}

// findClaudeBinary locates the claude CLI. Checked in order: the VS Code
// extension's bundled native binary, the standalone installer path, common
// system paths, the npm global bin. Falls back to bare "claude" and lets
// PATH resolution have the final say.
func findClaudeBinary() discovery {
	home, _ := os.UserHomeDir()

	if home != "" {
		extDir := filepath.Join(home, ".vscode", "extensions")
		if entries, err := os.ReadDir(extDir); err == nil {
			var best string
			for _, entry := range entries {
				name := entry.Name()
				if strings.HasPrefix(name, "anthropic.claude-code-") {
					bin := filepath.Join(extDir, name, "resources", "native-binary", "claude")
					if fileExists(bin) {
						best = bin
					}
				}
			}
			if best != "" {
				return discovery{binary: best}
			}
		}

		standalone := filepath.Join(home, ".claude", "local", "claude")
		if fileExists(standalone) {
			return discovery{binary: standalone}
		}
	}

	for _, path := range []string{"/opt/homebrew/bin/claude", "/usr/local/bin/claude", "/usr/bin/claude"} {
		if fileExists(path) {
			return discovery{binary: path}
		}
	}

	if home != "" {
		npmBin := filepath.Join(home, ".npm-global", "bin", "claude")
		if fileExists(npmBin) {
			return discovery{binary: npmBin}
		}
	}

	return discovery{binary: "claude"}
}

// findGeminiBinary locates the gemini CLI. Prefers running the npm package
// entry script through node directly, then wrapper scripts on common paths.
func findGeminiBinary() discovery {
	home, _ := os.UserHomeDir()

	if home != "" {
		script := filepath.Join(home, ".npm-global", "lib", "node_modules", "@google", "gemini-cli", "dist", "index.js")
		if fileExists(script) {
			return discovery{binary: "node", preArgs: []string{script}}
		}
	}

	script := "/usr/local/lib/node_modules/@google/gemini-cli/dist/index.js"
	if fileExists(script) {
		return discovery{binary: "node", preArgs: []string{script}}
	}

	if home != "" {
		npmBin := filepath.Join(home, ".npm-global", "bin", "gemini")
		if fileExists(npmBin) {
			return discovery{binary: npmBin}
		}
	}

	for _, path := range []string{"/opt/homebrew/bin/gemini", "/usr/local/bin/gemini", "/usr/bin/gemini"} {
		if fileExists(path) {
			return discovery{binary: path}
		}
	}

	return discovery{binary: "gemini"}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Package markdown normalizes markdown content for stable hashing and
// extracts title, description, and language hints for document rows.
package markdown

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// Extensions that get normalization applied.
var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
}

// IsMarkdown reports whether path carries a markdown extension.
func IsMarkdown(path string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(path))]
}

// Normalize rewrites markdown into a stable canonical form:
//   - strip a UTF-8 BOM
//   - trim trailing whitespace from each line
//   - collapse runs of blank lines to a single blank line
//   - end with exactly one trailing newline
//
// Content inside fenced code blocks (``` ... ```) is left untouched.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	inFence := false
	blankRun := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			blankRun = 0
			out = append(out, strings.TrimRight(line, " \t"))
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}

	// Drop leading and trailing blank lines, then force one final newline.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

// ExtractTitle returns the first level-1 heading, or the file stem when
// none exists.
func ExtractTitle(content, path string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return FileStem(path)
}

// ExtractDescription returns the first non-empty paragraph after the
// title heading, truncated to max bytes on a rune boundary. Headings,
// list markers and code fences never qualify.
func ExtractDescription(content string, max int) string {
	lines := strings.Split(content, "\n")
	// Start after the first level-1 heading; without one, from the top.
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			lines = lines[i+1:]
			break
		}
	}
	inFence = false
	var para []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "> ") ||
			strings.HasPrefix(trimmed, "|") {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	if len(para) == 0 {
		return ""
	}
	return domain.TruncateRunes(strings.Join(para, " "), max)
}

// FileStem returns the base name without extension, with separators
// replaced by spaces.
func FileStem(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// languageByExt maps filename extensions to language hints.
var languageByExt = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
	".rst":      "restructuredtext",
	".adoc":     "asciidoc",
	".go":       "go",
	".rs":       "rust",
	".py":       "python",
	".js":       "javascript",
	".ts":       "typescript",
	".java":     "java",
	".c":        "c",
	".h":        "c",
	".cpp":      "cpp",
	".rb":       "ruby",
	".sh":       "shell",
	".yaml":     "yaml",
	".yml":      "yaml",
	".toml":     "toml",
	".json":     "json",
	".html":     "html",
	".css":      "css",
	".sql":      "sql",
}

// DetectLanguage maps a filename extension to a language hint. Returns
// the empty string when unknown.
func DetectLanguage(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

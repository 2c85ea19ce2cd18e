package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type analyzeCodeArgs struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type analysisReport struct {
	Language   string   `json:"language"`
	TotalLines int      `json:"total_lines"`
	CodeLines  int      `json:"code_lines"`
	Packages   []string `json:"packages"`
	Warnings   []string `json:"warnings"`
}

var (
	rLibraryRe   = regexp.MustCompile(`(?m)^\s*(?:library|require)\(["']?([A-Za-z0-9._]+)["']?\)`)
	pyImportRe   = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z0-9_.]+)`)
	sasProcRe    = regexp.MustCompile(`(?mi)^\s*proc\s+([a-z0-9_]+)`)
	absolutePath = regexp.MustCompile(`["'](?:[A-Za-z]:\\|/(?:home|Users|data|mnt)/)[^"']*["']`)
)

// AnalyzeCodeTool applies static heuristics to clinical program code. It is
// a pure function of its input: no I/O, total for schema-valid arguments.
type AnalyzeCodeTool struct{}

func (t *AnalyzeCodeTool) Name() string { return "analyze_code" }

func (t *AnalyzeCodeTool) Description() string {
	return "Statically inspect an R, Python, or SAS program: line counts, referenced packages, and portability or safety warnings. Does not execute anything."
}

func (t *AnalyzeCodeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Program source to inspect",
			},
			"language": map[string]interface{}{
				"type":        "string",
				"description": "Source language (detected from the code when omitted)",
				"enum":        []string{"r", "python", "sas"},
			},
		},
		"required": []string{"code"},
	}
}

func (t *AnalyzeCodeTool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args analyzeCodeArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	language := strings.ToLower(strings.TrimSpace(args.Language))
	if language == "" {
		language = detectLanguage(args.Code)
	}

	report := analysisReport{
		Language: language,
		Packages: []string{},
		Warnings: []string{},
	}

	lines := strings.Split(args.Code, "\n")
	report.TotalLines = len(lines)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isComment(trimmed, language) {
			continue
		}
		report.CodeLines++
	}

	report.Packages = referencedPackages(args.Code, language)
	report.Warnings = collectWarnings(args.Code, language)

	return json.Marshal(report)
}

func detectLanguage(code string) string {
	switch {
	case rLibraryRe.MatchString(code) || strings.Contains(code, "%>%") || strings.Contains(code, "<-"):
		return "r"
	case sasProcRe.MatchString(code) || regexp.MustCompile(`(?mi)^\s*data\s+\w+\s*;`).MatchString(code):
		return "sas"
	case pyImportRe.MatchString(code) || strings.Contains(code, "def "):
		return "python"
	}
	return "r"
}

func isComment(trimmed, language string) bool {
	switch language {
	case "sas":
		return strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*")
	default:
		return strings.HasPrefix(trimmed, "#")
	}
}

func referencedPackages(code, language string) []string {
	seen := map[string]struct{}{}
	var re *regexp.Regexp
	switch language {
	case "python":
		re = pyImportRe
	case "sas":
		re = sasProcRe
	default:
		re = rLibraryRe
	}

	for _, m := range re.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if language == "python" {
			name = strings.SplitN(name, ".", 2)[0]
		}
		seen[name] = struct{}{}
	}

	packages := make([]string, 0, len(seen))
	for name := range seen {
		packages = append(packages, name)
	}
	sort.Strings(packages)
	return packages
}

func collectWarnings(code, language string) []string {
	warnings := []string{}

	if absolutePath.MatchString(code) {
		warnings = append(warnings, "hard-coded absolute file path; prefer relative paths or parameters")
	}

	switch language {
	case "r":
		if strings.Contains(code, "setwd(") {
			warnings = append(warnings, "setwd() makes the program depend on a local directory layout")
		}
		if strings.Contains(code, "install.packages(") {
			warnings = append(warnings, "install.packages() at run time; pin dependencies outside the program")
		}
		if strings.Contains(code, "attach(") {
			warnings = append(warnings, "attach() can silently mask variables; use explicit data frame references")
		}
	case "python":
		if strings.Contains(code, "eval(") || strings.Contains(code, "exec(") {
			warnings = append(warnings, "dynamic eval/exec of generated strings")
		}
		if strings.Contains(code, "os.system(") || strings.Contains(code, "subprocess") {
			warnings = append(warnings, "shell invocation from analysis code")
		}
	case "sas":
		if regexp.MustCompile(`(?i)x\s+['"]`).MatchString(code) {
			warnings = append(warnings, "X command executes shell statements")
		}
	}

	return warnings
}

// Package platform implements C1: OS/arch detection and app build-tool
// config discovery, producing an AppBuildInfo.
package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/ghodss/yaml"
)

// BuildTool is the tagged-variant discriminator for AppBuildInfo.
type BuildTool int

const (
	NoBuildTool BuildTool = iota
	Forge
	Builder
	Tauri
)

func (b BuildTool) String() string {
	switch b {
	case Forge:
		return "forge"
	case Builder:
		return "builder"
	case Tauri:
		return "tauri"
	default:
		return "none"
	}
}

// AppBuildInfo is the sum type produced by Detect: exactly one build tool
// identified, or an explicit NoBuildTool error.
type AppBuildInfo struct {
	Tool    BuildTool
	AppName string
	RootDir string
	// ConfigPath is the file Detect matched (package.json, tauri.conf.json,
	// forge.config.js, ...), used by Watch to know what to re-trigger on.
	ConfigPath string
	// Config holds the raw parsed config object (package.json#config.forge,
	// electron-builder config, or tauri.conf.json), keyed loosely since each
	// build tool's schema differs.
	Config map[string]any
}

// ConfigError reports a fatal-to-prepare configuration problem: either no
// build tool was found, more than one was found, or a found config file
// failed to parse.
type ConfigError struct {
	Kind      string // "NO_BUILD_TOOL" | "MULTIPLE_BUILD_TOOLS" | "PARSE_ERROR"
	BuildTool string
	Detail    string
}

func (e *ConfigError) Error() string {
	if e.BuildTool != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.BuildTool, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

var packageJSONName = "package.json"

type candidateConfig struct {
	tool  BuildTool
	path  string
	parse func(root, path string) (map[string]any, error)
}

// Detect scans projectRoot for a build-tool config, in the preference order
// documented in §4.1: Forge, then Builder, then Tauri. If appBinaryPath is
// already known the caller should skip Detect entirely (§4.1 step 1).
func Detect(projectRoot string) (*AppBuildInfo, error) {
	var found []candidateConfig

	forgeCandidates := []string{"forge.config.js", "forge.config.cjs", "forge.config.mjs", "forge.config.ts"}
	for _, f := range forgeCandidates {
		p := filepath.Join(projectRoot, f)
		if fileExists(p) {
			found = append(found, candidateConfig{Forge, p, parseOpaqueJSConfig})
			break
		}
	}
	if len(found) == 0 {
		if pkg, ok := readPackageJSON(projectRoot); ok {
			if cfgSection, ok := pkg["config"].(map[string]any); ok {
				if _, ok := cfgSection["forge"]; ok {
					found = append(found, candidateConfig{Forge, filepath.Join(projectRoot, packageJSONName), parsePackageJSONSection("config", "forge")})
				}
			}
		}
	}

	builderCandidates := []string{
		"electron-builder.json", "electron-builder.json5", "electron-builder.yaml", "electron-builder.yml",
		"electron-builder.toml", "electron-builder.js", "electron-builder.ts", "electron-builder.cjs",
		"electron-builder.mjs", "electron-builder.cts", "electron-builder.mts",
		"electron-builder.config.json", "electron-builder.config.js", "electron-builder.config.ts",
	}
	for _, f := range builderCandidates {
		p := filepath.Join(projectRoot, f)
		if fileExists(p) {
			if strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".json5") || strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".toml") {
				found = append(found, candidateConfig{Builder, p, parseStructuredConfig})
			} else {
				found = append(found, candidateConfig{Builder, p, parseOpaqueJSConfig})
			}
			break
		}
	}
	if len(found) == 0 || found[len(found)-1].tool != Builder {
		if pkg, ok := readPackageJSON(projectRoot); ok {
			if _, ok := pkg["build"]; ok {
				found = append(found, candidateConfig{Builder, filepath.Join(projectRoot, packageJSONName), parsePackageJSONSection("build", "")})
			}
		}
	}

	tauriConf := filepath.Join(projectRoot, "src-tauri", "tauri.conf.json")
	if fileExists(tauriConf) {
		found = append(found, candidateConfig{Tauri, tauriConf, parseStructuredConfig})
	}

	// Deduplicate by tool: a package.json#build entry alongside an
	// electron-builder.json file is still one Builder match, not two.
	byTool := map[BuildTool]candidateConfig{}
	for _, c := range found {
		byTool[c.tool] = c
	}

	switch len(byTool) {
	case 0:
		return nil, &ConfigError{Kind: "NO_BUILD_TOOL", Detail: "no Forge, Builder, or Tauri config found under " + projectRoot}
	case 1:
		for tool, c := range byTool {
			cfg, err := c.parse(projectRoot, c.path)
			if err != nil {
				return nil, &ConfigError{Kind: "PARSE_ERROR", BuildTool: tool.String(), Detail: err.Error()}
			}
			name, err := appName(tool, projectRoot, cfg)
			if err != nil {
				return nil, &ConfigError{Kind: "PARSE_ERROR", BuildTool: tool.String(), Detail: err.Error()}
			}
			return &AppBuildInfo{Tool: tool, AppName: name, RootDir: projectRoot, ConfigPath: c.path, Config: cfg}, nil
		}
	}

	names := make([]string, 0, len(byTool))
	for t := range byTool {
		names = append(names, t.String())
	}
	return nil, &ConfigError{Kind: "MULTIPLE_BUILD_TOOLS", Detail: fmt.Sprintf("found %v", names)}
}

// appName resolves the app name per the rules in §4.1, normalizing for Linux.
func appName(tool BuildTool, root string, cfg map[string]any) (string, error) {
	var raw string
	switch tool {
	case Forge:
		if pc, ok := cfg["packagerConfig"].(map[string]any); ok {
			if n, ok := pc["name"].(string); ok && n != "" {
				raw = n
			}
		}
		if raw == "" {
			if pkg, ok := readPackageJSON(root); ok {
				if n, ok := pkg["name"].(string); ok {
					raw = n
				}
			}
		}
	case Builder:
		for _, key := range []string{"productName", "executableName"} {
			if n, ok := cfg[key].(string); ok && n != "" {
				raw = n
				break
			}
		}
		if raw == "" {
			if pkg, ok := readPackageJSON(root); ok {
				if n, ok := pkg["name"].(string); ok {
					raw = n
				}
			}
		}
	case Tauri:
		if n, ok := cfg["productName"].(string); ok && n != "" {
			raw = n
		} else if name, err := cargoPackageName(filepath.Join(root, "src-tauri", "Cargo.toml")); err == nil {
			raw = name
		}
	}
	if raw == "" {
		return "", fmt.Errorf("could not resolve app name for %s config", tool)
	}
	if runtime.GOOS == "linux" {
		raw = linuxKebab(raw)
	}
	return raw, nil
}

var whitespaceRegexp = regexp.MustCompile(`\s+`)

func linuxKebab(name string) string {
	lower := strings.ToLower(name)
	return whitespaceRegexp.ReplaceAllString(strings.TrimSpace(lower), "-")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readPackageJSON(root string) (map[string]any, bool) {
	data, err := os.ReadFile(filepath.Join(root, packageJSONName))
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func parseStructuredConfig(_ string, path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default: // .json, .json5 and .toml are all decoded as JSON; a file that is not valid JSON fails to parse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// parseOpaqueJSConfig handles forge.config.js/.cjs/.mjs/.ts and
// electron-builder.js/.ts variants. This binary cannot evaluate JavaScript,
// so it only extracts package.json fallback fields; see SPEC_FULL.md's C1
// note on this deliberate limitation.
func parseOpaqueJSConfig(root string, _ string) (map[string]any, error) {
	if pkg, ok := readPackageJSON(root); ok {
		return pkg, nil
	}
	return map[string]any{}, nil
}

func parsePackageJSONSection(topKey, nestedKey string) func(root, path string) (map[string]any, error) {
	return func(root, _ string) (map[string]any, error) {
		pkg, ok := readPackageJSON(root)
		if !ok {
			return nil, fmt.Errorf("package.json not found or invalid under %s", root)
		}
		section, _ := pkg[topKey].(map[string]any)
		if nestedKey != "" {
			nested, _ := section[nestedKey].(map[string]any)
			merged := map[string]any{}
			for k, v := range nested {
				merged[k] = v
			}
			merged["packagerConfig"] = nested
			return merged, nil
		}
		if section == nil {
			section = map[string]any{}
		}
		return section, nil
	}
}

var cargoNameRegexp = regexp.MustCompile(`(?m)^\s*name\s*=\s*"([^"]+)"`)

func cargoPackageName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	m := cargoNameRegexp.FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("no [package] name found in %s", path)
	}
	return string(m[1]), nil
}

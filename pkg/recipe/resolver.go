// Package recipe detects a project's language and produces the
// Dockerfile and test-runner wrapper a container build needs, either by
// reusing a checked-in recipe or rendering one from built-in templates.
package recipe

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	// LanguageNode is detected from a package.json at the workspace root.
	LanguageNode = "node"
	// LanguagePython is detected from pyproject.toml/requirements.txt, and
	// is also the fallback when neither is present.
	LanguagePython = "python"

	sadguardDir     = ".sadguard"
	dockerfileName  = "Dockerfile"
	wrapperName     = "wrapper.sh"
	overridesName   = "sadguard.yaml"
	nodeBaseImage   = "node:18-bullseye"
	pythonBaseImage = "python:3.10-slim"
	pythonTestCmd   = "pytest -v tests/test_app.py"
)

// Recipe describes how to build and run a project's test suite inside a
// container.
type Recipe struct {
	Language        string
	BaseImage       string
	InstallCommand  string
	TestCommand     string
	DockerfilePath  string // workspace dir joined with .sadguard/Dockerfile
	WrapperPath     string
	UsedExistingDir bool // true when .sadguard/Dockerfile and .sadguard/wrapper.sh were both already present

	// RunTimeout and MaxIterations, when non-zero, override the
	// orchestrator's defaults for this run. DebugExposePort, when set
	// (e.g. "8081/tcp"), is published so a developer can reach the
	// sandbox's mitmproxy web UI while a run is in flight.
	RunTimeout      time.Duration
	MaxIterations   int
	DebugExposePort string
}

// overrides is the shape of an optional .sadguard/sadguard.yaml file a
// repository can check in to tune a run beyond the detected defaults.
type overrides struct {
	RunTimeout      string `yaml:"run_timeout"`
	MaxIterations   int    `yaml:"max_iterations"`
	DebugExposePort string `yaml:"debug_expose_port"`
}

// loadOverrides reads .sadguard/sadguard.yaml if present and applies it
// to rec. A missing file is not an error; a malformed one is.
func loadOverrides(workspaceDir string, rec *Recipe) error {
	path := filepath.Join(workspaceDir, sadguardDir, overridesName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", overridesName, err)
	}

	var o overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse %s: %w", overridesName, err)
	}

	if o.RunTimeout != "" {
		d, err := time.ParseDuration(o.RunTimeout)
		if err != nil {
			return fmt.Errorf("invalid run_timeout in %s: %w", overridesName, err)
		}
		rec.RunTimeout = d
	}
	rec.MaxIterations = o.MaxIterations
	rec.DebugExposePort = o.DebugExposePort
	return nil
}

// packageJSON is the subset of package.json the resolver inspects.
type packageJSON struct {
	Scripts struct {
		Test string `json:"test"`
	} `json:"scripts"`
}

// Resolve inspects workspaceDir, reusing an existing .sadguard/ recipe
// when present, otherwise detecting the language and rendering one from
// the built-in templates.
func Resolve(workspaceDir string) (*Recipe, error) {
	dockerfilePath := filepath.Join(workspaceDir, sadguardDir, dockerfileName)
	wrapperPath := filepath.Join(workspaceDir, sadguardDir, wrapperName)

	if fileExists(dockerfilePath) && fileExists(wrapperPath) {
		if err := os.Chmod(wrapperPath, 0o755); err != nil {
			return nil, fmt.Errorf("make existing wrapper executable: %w", err)
		}
		rec := &Recipe{
			DockerfilePath:  dockerfilePath,
			WrapperPath:     wrapperPath,
			UsedExistingDir: true,
		}
		if err := loadOverrides(workspaceDir, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec, err := detect(workspaceDir)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(workspaceDir, sadguardDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", sadguardDir, err)
	}

	if err := renderTemplate("Dockerfile.tmpl", dockerfilePath, rec, 0o644); err != nil {
		return nil, err
	}
	if err := renderTemplate("wrapper.sh.tmpl", wrapperPath, rec, 0o755); err != nil {
		return nil, err
	}

	rec.DockerfilePath = dockerfilePath
	rec.WrapperPath = wrapperPath
	if err := loadOverrides(workspaceDir, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// detect inspects the workspace tree and returns the recipe variables for
// the detected language, per the resolution order: Node, then Python, then
// the Python default.
func detect(workspaceDir string) (*Recipe, error) {
	if fileExists(filepath.Join(workspaceDir, "package.json")) {
		testCmd := "npm test"
		data, err := os.ReadFile(filepath.Join(workspaceDir, "package.json"))
		if err == nil {
			var pkg packageJSON
			if json.Unmarshal(data, &pkg) == nil && pkg.Scripts.Test != "" {
				testCmd = pkg.Scripts.Test
			}
		}
		return &Recipe{
			Language:       LanguageNode,
			BaseImage:      nodeBaseImage,
			InstallCommand: "npm install",
			TestCommand:    testCmd,
		}, nil
	}

	hasRequirements := fileExists(filepath.Join(workspaceDir, "requirements.txt"))
	if hasRequirements || fileExists(filepath.Join(workspaceDir, "pyproject.toml")) {
		install := "pip install ."
		if hasRequirements {
			install = "pip install -r requirements.txt"
		}
		return &Recipe{
			Language:       LanguagePython,
			BaseImage:      pythonBaseImage,
			InstallCommand: install,
			TestCommand:    pythonTestCmd,
		}, nil
	}

	return &Recipe{
		Language:       LanguagePython,
		BaseImage:      pythonBaseImage,
		InstallCommand: "pip install .",
		TestCommand:    pythonTestCmd,
	}, nil
}

func renderTemplate(tmplName, destPath string, rec *Recipe, mode os.FileMode) error {
	tmpl, err := template.New(tmplName).ParseFS(templatesFS, "templates/"+tmplName)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", tmplName, err)
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", destPath, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, rec); err != nil {
		return fmt.Errorf("render template %s: %w", tmplName, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/output"
	"github.com/giai-dev/giai/pkg/version"
)

func newInitCmd() *cobra.Command {
	var (
		force      bool
		configOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize giai for a project",
		Long: `Initialize giai for the current project.

This command:
1. Generates a .giai.yaml configuration template (if one doesn't exist)
2. Adds .git-ai/ to .gitignore
3. Runs a full index of the project (unless --config-only)`,
		Example: `  # Initialize in the current project
  giai init

  # Overwrite the config template
  giai init --force

  # Generate config only, skip indexing
  giai init --force --config-only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, force, configOnly)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing .giai.yaml template")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "Generate the config template only, skip indexing")

	return cmd
}

// projectConfigTemplate renders the default Config as YAML below a short
// comment header, used to seed a project's .giai.yaml on first init.
func projectConfigTemplate() (string, error) {
	data, err := yaml.Marshal(config.NewConfig())
	if err != nil {
		return "", err
	}
	header := "# giai project configuration.\n" +
		"# Edit only the settings you want to override; anything removed\n" +
		"# from this file falls back to the built-in defaults shown here.\n" +
		"# Precedence (lowest to highest): defaults < user config\n" +
		"# (~/.config/giai/config.yaml) < this file < GIAI_* environment vars.\n\n"
	return header + string(data), nil
}

// generateProjectConfig writes .giai.yaml if neither it nor .giai.yml
// already exists.
func generateProjectConfig(out *output.Writer, projectRoot string) error {
	yamlPath := filepath.Join(projectRoot, ".giai.yaml")
	ymlPath := filepath.Join(projectRoot, ".giai.yml")

	if _, err := os.Stat(yamlPath); err == nil {
		out.Status("ℹ️ ", "Existing .giai.yaml preserved")
		return nil
	}
	if _, err := os.Stat(ymlPath); err == nil {
		out.Status("ℹ️ ", "Existing .giai.yml found, skipping template")
		return nil
	}

	template, err := projectConfigTemplate()
	if err != nil {
		return fmt.Errorf("failed to render config template: %w", err)
	}
	if err := os.WriteFile(yamlPath, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write .giai.yaml: %w", err)
	}

	out.Statusf("📝", "Created .giai.yaml (optional project configuration)")
	return nil
}

// gitAIIgnorePatterns are the literal .gitignore lines that already cover
// .git-ai/.
var gitAIIgnorePatterns = []string{".git-ai", ".git-ai/", "/.git-ai", "/.git-ai/"}

func hasGitAIIgnoreEntry(content string) bool {
	for _, line := range bytes.Split([]byte(content), []byte("\n")) {
		trimmed := string(bytes.TrimSpace(line))
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		for _, pattern := range gitAIIgnorePatterns {
			if trimmed == pattern {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds .git-ai/ to .gitignore if not already present.
// Returns (true, nil) if it added an entry.
func ensureGitignore(projectRoot string) (bool, error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasGitAIIgnoreEntry(string(content)) {
		return false, nil
	}

	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var entry string
	if len(content) == 0 {
		entry = fmt.Sprintf("# giai index data (auto-generated)%s.git-ai/%s", lineEnding, lineEnding)
	} else {
		entry = fmt.Sprintf("%s# giai index data (auto-generated)%s.git-ai/%s", lineEnding, lineEnding, lineEnding)
	}
	content = append(content, []byte(entry)...)

	if err := os.WriteFile(gitignorePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

func runInit(ctx context.Context, cmd *cobra.Command, force, configOnly bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "Giai %s - Initializing...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	out.Statusf("📁", "Project: %s", absRoot)
	out.Newline()

	if force {
		// --force only affects the config template; existing index rows are
		// replaced per file by a normal indexing pass, not wiped up front.
		_ = os.Remove(filepath.Join(absRoot, ".giai.yaml"))
	}
	if err := generateProjectConfig(out, absRoot); err != nil {
		out.Warningf("Could not create .giai.yaml template: %v", err)
	}

	added, err := ensureGitignore(absRoot)
	if err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Status("📝", "Added .git-ai/ to .gitignore")
	}

	if configOnly {
		out.Newline()
		out.Status("⏭️ ", "Skipping indexing (--config-only)")
		out.Success("Configuration complete!")
		return nil
	}

	out.Newline()
	out.Status("📊", "Indexing project...")

	startTime := time.Now()
	if err := runIndex(ctx, cmd, absRoot, false); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	duration := time.Since(startTime)

	out.Newline()
	out.Statusf("⏱️ ", "Completed in %.1fs", duration.Seconds())

	out.Newline()
	out.Success("Initialization complete!")
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Run 'giai query \"...\"' to search the index")
	out.Status("", "  2. Run 'giai doctor' to verify the setup")

	if !config.UserConfigExists() {
		out.Newline()
		out.Status("💡", "For machine-specific settings:")
		out.Status("", "   Run 'giai config init' to create a user config")
	}

	return nil
}

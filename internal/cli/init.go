package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/andywolf/reqsync/internal/cli/wizard"
	"github.com/andywolf/reqsync/internal/config"
)

// ConfigFilename is the project config file written by init.
const ConfigFilename = ".reqsync.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize project configuration",
	Long: `Initialize reqsync configuration for the current project.

This creates a .reqsync.yaml file. Without --non-interactive, a short wizard
asks for the organization, export location and GitHub authentication.

Example:
  reqsync init
  reqsync init --non-interactive --org acme --destination docs/specs`,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("org", "", "Default GitHub organization")
	initCmd.Flags().Int("port", config.DefaultPort, "Server port")
	initCmd.Flags().String("base-path", config.DefaultBasePath, "Root directory exports are written under")
	initCmd.Flags().String("destination", config.DefaultDestination, "Export directory below <base-path>/<repo>")
	initCmd.Flags().Bool("non-interactive", false, "Use flag values without prompting")
	initCmd.Flags().Bool("force", false, "Overwrite existing config")
}

// projectConfig is the on-disk layout of .reqsync.yaml.
type projectConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	GitHub struct {
		Organization string      `yaml:"organization,omitempty"`
		TokenSecret  string      `yaml:"token_secret,omitempty"`
		App          *appSection `yaml:"app,omitempty"`
	} `yaml:"github"`
	Export struct {
		BasePath        string `yaml:"base_path"`
		Destination     string `yaml:"destination"`
		IncludeComments bool   `yaml:"include_comments"`
		AuditFile       string `yaml:"audit_file,omitempty"`
	} `yaml:"export"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type appSection struct {
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

// buildProjectConfig converts wizard answers to the file layout.
func buildProjectConfig(a wizard.Answers) (projectConfig, error) {
	var cfg projectConfig

	port, err := strconv.Atoi(a.Port)
	if err != nil {
		return cfg, fmt.Errorf("invalid port %q", a.Port)
	}
	cfg.Server.Port = port

	cfg.GitHub.Organization = a.Organization
	switch a.Auth {
	case wizard.AuthSecret:
		cfg.GitHub.TokenSecret = a.TokenSecret
	case wizard.AuthApp:
		appID, err := wizard.ParseID(a.AppID)
		if err != nil {
			return cfg, err
		}
		installationID, err := wizard.ParseID(a.InstallationID)
		if err != nil {
			return cfg, err
		}
		cfg.GitHub.App = &appSection{AppID: appID, InstallationID: installationID, PrivateKeyFile: a.PrivateKeyFile}
	}

	cfg.Export.BasePath = a.BasePath
	cfg.Export.Destination = a.Destination
	cfg.Export.IncludeComments = a.IncludeComments
	cfg.Export.AuditFile = filepath.Join(".reqsync", "exports.jsonl")

	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg, nil
}

func initProject(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(".", ConfigFilename)

	force, _ := cmd.Flags().GetBool("force")
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")

	if _, err := os.Stat(configPath); err == nil && !force {
		if nonInteractive {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
		ok, err := wizard.ConfirmOverwrite(configPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Keeping existing config.")
			return nil
		}
	}

	port, _ := cmd.Flags().GetInt("port")
	answers := wizard.Answers{
		Port:            strconv.Itoa(port),
		IncludeComments: true,
		Auth:            wizard.AuthToken,
	}
	answers.Organization, _ = cmd.Flags().GetString("org")
	answers.BasePath, _ = cmd.Flags().GetString("base-path")
	answers.Destination, _ = cmd.Flags().GetString("destination")

	if !nonInteractive {
		if err := wizard.PromptConfig(&answers); err != nil {
			return err
		}
	}

	cfg, err := buildProjectConfig(answers)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# reqsync configuration
# Environment variables (REQSYNC_*, GITHUB_TOKEN, GITHUB_ORG) override these values.

`
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n\n", configPath)
	fmt.Fprintln(out, "Next steps:")
	if answers.Auth == wizard.AuthToken {
		fmt.Fprintln(out, "  1. Put GITHUB_TOKEN=<token> in .env.local")
	} else {
		fmt.Fprintln(out, "  1. Check the GitHub credentials in", ConfigFilename)
	}
	fmt.Fprintln(out, "  2. Run 'reqsync serve' to start the API server")
	fmt.Fprintln(out, "  3. Run 'reqsync export <repo> --issues 1,2,3' to export requirements")

	return nil
}

// Package wizard provides interactive prompts for CLI commands.
package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/andywolf/reqsync/internal/security"
)

// Authentication modes offered by the setup wizard.
const (
	AuthToken  = "token"
	AuthSecret = "secret"
	AuthApp    = "app"
	AuthNone   = "none"
)

// Answers holds the setup wizard values. Numeric fields stay strings so
// huh inputs can edit them directly.
type Answers struct {
	Organization    string
	Port            string
	BasePath        string
	Destination     string
	IncludeComments bool

	Auth           string
	TokenSecret    string
	AppID          string
	InstallationID string
	PrivateKeyFile string
}

// PromptConfig asks for project settings, starting from the values already
// in a.
func PromptConfig(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("reqsync setup").
				Description("Requirements live in GitHub issues and are exported as markdown."),

			huh.NewInput().
				Title("GitHub organization").
				Description("Default owner for repositories given without one").
				Value(&a.Organization).
				Validate(validateOrganization),

			huh.NewInput().
				Title("Server port").
				Value(&a.Port).
				Validate(validatePort),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Export base path").
				Description("Files go to <base path>/<repo>/<destination>").
				Value(&a.BasePath),

			huh.NewInput().
				Title("Export destination").
				Value(&a.Destination).
				Validate(security.ValidateDestination),

			huh.NewConfirm().
				Title("Include comments in exports?").
				Value(&a.IncludeComments),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("GitHub authentication").
				Options(
					huh.NewOption("Personal access token (GITHUB_TOKEN)", AuthToken),
					huh.NewOption("Token in GCP Secret Manager", AuthSecret),
					huh.NewOption("GitHub App installation", AuthApp),
					huh.NewOption("None (public repositories, read only)", AuthNone),
				).
				Value(&a.Auth),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Secret Manager path").
				Description("e.g. projects/my-project/secrets/github-token").
				Value(&a.TokenSecret).
				Validate(required("secret path")),
		).WithHideFunc(func() bool { return a.Auth != AuthSecret }),
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub App ID").
				Value(&a.AppID).
				Validate(validateID),

			huh.NewInput().
				Title("Installation ID").
				Value(&a.InstallationID).
				Validate(validateID),

			huh.NewInput().
				Title("Private key file").
				Value(&a.PrivateKeyFile).
				Validate(required("private key file")),
		).WithHideFunc(func() bool { return a.Auth != AuthApp }),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt cancelled: %w", err)
	}
	return nil
}

// ConfirmOverwrite asks before replacing an existing config file.
func ConfirmOverwrite(path string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func validateOrganization(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return security.ValidateOwner(s)
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateID(s string) error {
	id, err := ParseID(s)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("a positive ID is required")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// ParseID parses a GitHub App or installation ID. Empty means zero.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%q is not a valid ID", s)
	}
	return id, nil
}

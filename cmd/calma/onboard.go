package main

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// onboardAnswers holds everything the first-run questionnaire collects.
type onboardAnswers struct {
	UserName     string
	ContactEmail string
	AlertURL     string
	Provider     string
	APIKey       string
	Model        string
}

var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"anthropic":  "claude-3-5-haiku-latest",
	"openrouter": "openai/gpt-4o-mini",
}

func onboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Interactive first-run setup: emergency contact, provider, and model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outPath, _ := cmd.Flags().GetString("output")
			if outPath == "" {
				outPath = defaultConfigPath()
			}

			if _, err := os.Stat(outPath); err == nil {
				var overwrite bool
				confirm := huh.NewConfirm().
					Title(fmt.Sprintf("%s already exists. Overwrite?", outPath)).
					Value(&overwrite)
				if err := confirm.Run(); err != nil {
					return err
				}
				if !overwrite {
					fmt.Println("Keeping existing configuration.")
					return nil
				}
			}

			answers, err := runOnboardForm()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, renderConfig(answers), 0o600); err != nil {
				return err
			}

			fmt.Printf("Configuration written to %s\n", outPath)
			fmt.Println("Start with: calma start")
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the configuration (default: standard config path)")
	return cmd
}

func runOnboardForm() (onboardAnswers, error) {
	var a onboardAnswers

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Your first name").
				Description("Used to address you in conversation and in emergency alerts.").
				Value(&a.UserName),
			huh.NewInput().
				Title("Emergency contact email").
				Description("Notified at most once per day if a conversation signals a crisis. Leave empty to disable alerts.").
				Validate(validateOptionalEmail).
				Value(&a.ContactEmail),
			huh.NewInput().
				Title("Alert endpoint URL").
				Description("HTTP endpoint that delivers the alert email. Leave empty to disable alerts.").
				Value(&a.AlertURL),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model provider").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenRouter", "openrouter"),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the provider default.").
				Value(&a.Model),
		),
	)

	if err := form.Run(); err != nil {
		return onboardAnswers{}, err
	}

	if a.Model == "" {
		a.Model = defaultModels[a.Provider]
	}
	return a, nil
}

func validateOptionalEmail(s string) error {
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("not a valid email address")
	}
	return nil
}

// renderConfig produces a calma.yaml from the questionnaire answers.
func renderConfig(a onboardAnswers) []byte {
	cfg := fmt.Sprintf(`version: "1"

modules:
  observability: {}

  store.sqlite: {}

  provider.%s:
    api_key: %q
    model: %q

  pipeline:
    provider: %q
    model: %q
    user_name: %q
`, a.Provider, a.APIKey, a.Model, a.Provider, a.Model, a.UserName)

	if a.ContactEmail != "" && a.AlertURL != "" {
		cfg += fmt.Sprintf(`    notify:
      contact_email: %q
      endpoint_url: %q
`, a.ContactEmail, a.AlertURL)
	}

	cfg += `
  gateway:
    bind: 127.0.0.1:8080
`
	return []byte(cfg)
}

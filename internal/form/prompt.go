package form

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
)

// ErrAborted signals the user interrupted a prompt.
var ErrAborted = errors.New("form: aborted")

// InputConfig configures a single-line prompt.
type InputConfig struct {
	Message string
	Default string
	Help    string
}

// SelectConfig configures a choice prompt.
type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
	Help         string
}

// PromptDriver abstracts the terminal so prompt flows can run against a fake.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	TextArea(ctx context.Context, cfg InputConfig) (string, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	Info(ctx context.Context, msg string) error
}

// OnChange receives the raw answer for a field.
type OnChange func(fieldID, value string)

// Prompt asks for every field in order, starting from the resolved current
// value, and reports each answer through onChange.
func Prompt(ctx context.Context, d PromptDriver, fields []templates.Field, values models.FieldValues, onChange OnChange) error {
	for _, f := range fields {
		current := Value(f, values)
		answer, err := ask(ctx, d, f, current)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.ID, err)
		}
		if onChange != nil {
			onChange(f.ID, answer)
		}
		if f.MaxLength > 0 && (f.Kind == templates.KindText || f.Kind == templates.KindTextarea) {
			if err := d.Info(ctx, "  "+Counter(f, answer)); err != nil {
				return err
			}
		}
	}
	return nil
}

func ask(ctx context.Context, d PromptDriver, f templates.Field, current string) (string, error) {
	switch f.Kind {
	case templates.KindTextarea:
		return d.TextArea(ctx, InputConfig{Message: f.Label, Default: current, Help: f.Placeholder})
	case templates.KindColor:
		return d.Input(ctx, InputConfig{Message: f.Label + " (hex)", Default: current, Help: "e.g. #8B5CF6"})
	case templates.KindSelect:
		placeholder := f.Placeholder
		if placeholder == "" {
			placeholder = "Select " + f.Label
		}
		options := append([]string{placeholder}, f.Options...)
		def := 0
		for i, opt := range f.Options {
			if opt == current {
				def = i + 1
			}
		}
		idx, err := d.Select(ctx, SelectConfig{Message: f.Label, Options: options, DefaultIndex: def})
		if err != nil {
			return "", err
		}
		if idx <= 0 || idx >= len(options) {
			return "", nil
		}
		return options[idx], nil
	default:
		return d.Input(ctx, InputConfig{Message: f.Label, Default: current, Help: f.Placeholder})
	}
}

// SurveyDriver is the PromptDriver backed by a real terminal.
type SurveyDriver struct{}

func (SurveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (SurveyDriver) TextArea(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Multiline{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (SurveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var out int
	prompt := &survey.Select{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		prompt.Default = cfg.Options[cfg.DefaultIndex]
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return 0, translateSurveyErr(err)
	}
	return out, nil
}

func (SurveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(os.Stdout, msg)
	return err
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

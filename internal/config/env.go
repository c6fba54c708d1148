package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvFile is the env file read by each command family.
func DefaultEnvFile(scope Scope) string {
	if scope == ScopeTranslate {
		return ".env.translator"
	}
	return ".env"
}

// RegisterFlags adds one flag per setting in scope to fs.
func RegisterFlags(fs *pflag.FlagSet, scope Scope) {
	for _, d := range Definitions(scope) {
		help := d.Help
		if len(d.Choices) > 0 {
			help += " (" + strings.Join(d.Choices, ", ") + ")"
		}
		switch def := d.Default.(type) {
		case int:
			fs.Int(d.Flag(), def, help)
		case float64:
			fs.Float64(d.Flag(), def, help)
		case bool:
			fs.Bool(d.Flag(), def, help)
		default:
			fs.String(d.Flag(), fmt.Sprint(def), help)
		}
	}
}

// NewViper loads envFile into the process environment (existing variables
// win), then returns a viper instance where a changed flag beats the
// environment, which beats the flag default.
func NewViper(fs *pflag.FlagSet, envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// WriteEnvTemplate writes a commented env file with every setting in scope
// at its default value, grouped by section.
func WriteEnvTemplate(w io.Writer, scope Scope) error {
	defs := Definitions(scope)
	byGroup := make(map[string][]Definition)
	for _, d := range defs {
		byGroup[d.Group] = append(byGroup[d.Group], d)
	}

	var b strings.Builder
	b.WriteString("# narrator configuration\n")
	b.WriteString("# Command-line flags override these values; unset values use the built-in defaults.\n")
	for _, group := range groupOrder {
		entries := byGroup[group]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n# --- %s ---\n", group)
		for _, d := range entries {
			fmt.Fprintf(&b, "# %s\n", d.Help)
			if len(d.Choices) > 0 {
				fmt.Fprintf(&b, "# Choices: %s\n", strings.Join(d.Choices, ", "))
			}
			value := ""
			if !d.Secret {
				value = formatEnvValue(d.Default)
			}
			fmt.Fprintf(&b, "%s=%s\n", d.Key, value)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatEnvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " #\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// CreateEnvFile writes the template to path. It refuses to replace an
// existing file unless force is set.
func CreateEnvFile(path string, scope Scope, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteEnvTemplate(f, scope); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

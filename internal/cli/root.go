package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/tts"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Turn long texts into audiobook segments or translations, resumably",
	Long: `narrator splits a text into chunks and feeds them to a speech or
translation engine one at a time. Progress is saved next to the output, so an
interrupted run picks up where it stopped.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "narrator %s\n", Version)
	},
}

var readCmd = &cobra.Command{
	Use:   "read [file|url]",
	Short: "Read a text aloud, or export it to MP3 files with --output-type FILE",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSpeech(cmd, args, false)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file|url]",
	Short: "Export a text to duration-bounded MP3 files (same as read --output-type FILE)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSpeech(cmd, args, true)
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate [file|url]",
	Short: "Translate a text chunk by chunk into a single text file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTranslate,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available voices for the speech engines",
	RunE:  runListVoices,
}

var generateEnvCmd = &cobra.Command{
	Use:   "generate-env",
	Short: "Write an env file with every setting at its default value",
	RunE:  runGenerateEnv,
}

var (
	flagVerbose bool
	flagEngine  string
	flagEnvOut  string
	flagForce   bool
	flagTransl  bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging on stderr")

	for _, c := range []struct {
		cmd   *cobra.Command
		scope config.Scope
	}{
		{readCmd, config.ScopeSpeech},
		{exportCmd, config.ScopeSpeech},
		{translateCmd, config.ScopeTranslate},
	} {
		addJobFlags(c.cmd.Flags(), c.scope)
	}

	listVoicesCmd.Flags().StringVarP(&flagEngine, "engine", "e", "", "Only list voices of this engine ("+engineNames()+")")

	generateEnvCmd.Flags().BoolVar(&flagTransl, "translator", false, "Generate the translator env file instead")
	generateEnvCmd.Flags().StringVarP(&flagEnvOut, "output", "o", "", "Output path (default .env or .env.translator)")
	generateEnvCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Overwrite an existing file")

	rootCmd.AddCommand(versionCmd, readCmd, exportCmd, translateCmd, listVoicesCmd, generateEnvCmd)
}

// addJobFlags registers the input flags and one flag per setting of scope.
func addJobFlags(fs *pflag.FlagSet, scope config.Scope) {
	fs.StringP("input", "i", "", "Source content (text file, PDF path, or URL)")
	fs.String("env-file", "", fmt.Sprintf("Env file to load (default %s)", config.DefaultEnvFile(scope)))
	fs.BoolP("tui", "t", false, "Interactive setup wizard")
	config.RegisterFlags(fs, scope)
}

func Execute() error {
	return rootCmd.Execute()
}

func engineNames() string {
	names := make([]string, len(tts.Engines))
	for i, e := range tts.Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

func runGenerateEnv(cmd *cobra.Command, args []string) error {
	scope := config.ScopeSpeech
	if flagTransl {
		scope = config.ScopeTranslate
	}
	path := flagEnvOut
	if path == "" {
		path = config.DefaultEnvFile(scope)
	}
	if err := config.CreateEnvFile(path, scope, flagForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  Wrote %s\n", path)
	return nil
}

func runListVoices(cmd *cobra.Command, args []string) error {
	engines := tts.Engines
	if flagEngine != "" {
		e, err := tts.ParseEngine(flagEngine)
		if err != nil {
			return err
		}
		engines = []tts.Engine{e}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAvailable voices:")
	for _, e := range engines {
		fmt.Fprintf(out, "\n  %s\n", e)
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))

		if e == tts.EngineOffline {
			list, err := tts.ListOfflineVoices(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "  (system voices unavailable: %v)\n", err)
				continue
			}
			for _, line := range strings.Split(strings.TrimSpace(list), "\n") {
				fmt.Fprintf(out, "  %s\n", line)
			}
			continue
		}

		voices, err := tts.AvailableVoices(e)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %-32s %-14s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			fmt.Fprintf(out, "  %-32s %-14s %-8s %s\n", v.ID, v.Name, v.Gender, v.Description)
		}
	}
	fmt.Fprintln(out)
	return nil
}

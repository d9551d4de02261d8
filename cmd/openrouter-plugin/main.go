package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/plugin"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/prompts"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/protocol"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/settings"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "openrouter-plugin [request]",
		Short: "OpenRouter chat plugin for Flow Launcher",
		Long: "Flow Launcher executable plugin that answers queries through the\n" +
			"OpenRouter chat completion API. The launcher passes one JSON-RPC\n" +
			"request as the sole argument and reads the response from stdout.",
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viper.SetEnvPrefix("FLOW_OPENROUTER")
			viper.AutomaticEnv()
		},
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				_ = cmd.Help()
				return
			}
			run(args[0])
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "print-config",
		Short: "Print a sample settings.json",
		Run: func(cmd *cobra.Command, args []string) {
			header := viper.GetString("CONFIG_HEADER")
			if header != "" {
				fmt.Println(header)
			}
			fmt.Print(settings.Template())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doc",
		Short: "Print the settings reference as markdown",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(settings.Doc())

			lib := prompts.NewLibrary(filepath.Join(settings.Dir(), "prompts"))
			fmt.Printf("\nPrompt files in `%s`:\n", lib.Dir())
			for _, name := range lib.List() {
				fmt.Printf("- %s\n", name)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run handles one launcher dispatch. Stdout carries exactly one response
// envelope; logs go to stderr.
func run(raw string) {
	req, err := protocol.ParseRequest([]byte(raw))
	if err != nil {
		logrus.WithError(err).Error("could not parse request")
		writeResponse(protocol.NewResponse(nil))
		return
	}

	p := plugin.New(settings.Dir())
	writeResponse(p.Handle(context.Background(), req))
}

func writeResponse(resp *protocol.Response) {
	if err := resp.Encode(os.Stdout); err != nil {
		logrus.WithError(err).Error("could not write response")
		os.Exit(1)
	}
}

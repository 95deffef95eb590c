package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simpleai-go/simpleai"
	"github.com/simpleai-go/simpleai/schema"
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Send a prompt and print the answer",
	Long:  "Resolve the provider and model, send the prompt and print the normalized answer. Multiple prompt arguments replay as prior conversation turns.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrompt,
}

func init() {
	runCmd.Flags().Bool("search", false, "Force the provider's native web search")
	runCmd.Flags().Bool("citations", false, "Return normalized citations (implies --search)")
	runCmd.Flags().StringSliceP("file", "f", nil, "Attach a file (repeatable)")
	runCmd.Flags().Bool("binary-files", true, "Send attachments as binary when the provider supports it")
	runCmd.Flags().String("schema", "", "JSON schema file constraining the output")
	runCmd.Flags().StringToString("option", nil, "Provider payload override as key=value (repeatable)")
	runCmd.Flags().Bool("json", false, "Print the full response as JSON")

	rootCmd.AddCommand(runCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	search, _ := cmd.Flags().GetBool("search")
	citations, _ := cmd.Flags().GetBool("citations")
	files, _ := cmd.Flags().GetStringSlice("file")
	binaryFiles, _ := cmd.Flags().GetBool("binary-files")
	schemaPath, _ := cmd.Flags().GetString("schema")
	overrides, _ := cmd.Flags().GetStringToString("option")
	asJSON, _ := cmd.Flags().GetBool("json")
	verbose := viper.GetBool("verbose")

	opts := []simpleai.RunOption{
		simpleai.WithModel(viper.GetString("model")),
		simpleai.WithRequireSearch(search),
		simpleai.WithBinaryFiles(binaryFiles),
	}
	if citations {
		opts = append(opts, simpleai.WithReturnCitations(true))
	}
	if path := viper.GetString("settings_file"); path != "" {
		opts = append(opts, simpleai.WithSettingsFile(path))
	}
	if len(files) > 0 {
		opts = append(opts, simpleai.WithFiles(files...))
	}
	if schemaPath != "" {
		format, err := loadSchema(schemaPath)
		if err != nil {
			return err
		}
		opts = append(opts, simpleai.WithOutputFormat(format))
	}
	for key, value := range overrides {
		opts = append(opts, simpleai.WithProviderOption(key, parseOverride(value)))
	}

	resp, err := simpleai.New().RunConversation(cmd.Context(), args, opts...)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "[simpleai] %s/%s in %.1fs (%d tokens, %d calls)\n",
			resp.Provider, resp.Model, resp.Elapsed.Seconds(), resp.Usage.TotalTokens, resp.CallCount)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Text)
	if len(resp.Citations) > 0 {
		fmt.Fprintln(os.Stderr, "\nSources:")
		for i, c := range resp.Citations {
			line := c.URL
			if c.Title != "" {
				line = c.Title + " - " + c.URL
			}
			fmt.Fprintf(os.Stderr, "  [%d] %s\n", i+1, line)
		}
	}
	return nil
}

// loadSchema reads a JSON schema file into an output format.
func loadSchema(path string) (*schema.Format, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	var s map[string]any
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parsing schema file: %w", err)
	}
	return &schema.Format{Schema: s}, nil
}

// parseOverride keeps --option values typed: numbers and booleans stay what
// they look like, everything else stays a string.
func parseOverride(value string) any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(value)), &v); err == nil {
		return v
	}
	return value
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "simpleai",
	Short: "One entry point for prompting generative AI providers",
	Long:  "simpleai sends a prompt to OpenAI, Anthropic, Gemini, Grok or Perplexity through one normalized interface, with search grounding, citations, structured output and file attachments.",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("model", "m", "", "Provider alias (e.g. openai) or model id (e.g. gpt-5.2); empty picks the first credentialed default")
	rootCmd.PersistentFlags().String("settings-file", "", "Explicit settings file (default: discovered ai_settings.json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("settings_file", rootCmd.PersistentFlags().Lookup("settings-file"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetEnvPrefix("SIMPLEAI")
	viper.AutomaticEnv()
}

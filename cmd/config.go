package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openqed/openqed/internal/utils"
)

const (
	configName = ".openqed"
	envPrefix  = "OPENQED"
)

// InitConfig reads in the config file and ENV variables if set. Every value
// has a default, so openqed runs with no config at all.
func InitConfig() {
	// Best-effort .env load; absence is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g. OPENQED_LLM_PROVIDER
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(utils.HomeDir())
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
	} else if cfgFileFlag != "" {
		fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFileFlag)
	}

	viper.SetDefault("store.path", utils.DefaultDBPath())
	viper.SetDefault("llm.provider", "")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.apiKey", "")
	viper.SetDefault("llm.baseURL", "")

	setupLogging()
}

// setupLogging routes slog to stderr so stdout stays clean for command
// output and the MCP stdio transport.
func setupLogging() {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

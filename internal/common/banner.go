package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner.
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()
	build := GetBuild()

	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("WORKQUEUE")
	b.PrintCenteredText("Hierarchical Work Queue Scheduler")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Service URL", serviceURL, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Msg("workqueue engine started")

	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the engine's configured adapters and cadence.
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("Configuration:\n")
	fmt.Printf("   - Badger store: %s\n", config.Storage.Badger.Path)
	fmt.Printf("   - Poll interval: %s\n", config.Queue.PollInterval)
	fmt.Printf("   - Work per cycle: %d\n", config.Queue.WorkPerCycle)
	fmt.Printf("   - Cleanup schedule: %s (enabled=%t)\n", config.Cleanup.Schedule, config.Cleanup.Enabled)

	adapterModes := map[string]bool{
		"dbs":             config.Adapters.DBS.MockMode,
		"phedex":          config.Adapters.PhEDEx.MockMode,
		"site_catalog":    config.Adapters.SiteCatalog.MockMode,
		"substrate":       config.Adapters.Substrate.MockMode,
		"request_manager": config.Adapters.RequestManager.MockMode,
	}
	for name, mock := range adapterModes {
		mode := "http"
		if mock {
			mode = "mock"
		}
		fmt.Printf("   - Adapter %s: %s\n", name, mode)
	}

	logger.Info().
		Str("badger_path", config.Storage.Badger.Path).
		Str("poll_interval", config.Queue.PollInterval).
		Int("work_per_cycle", config.Queue.WorkPerCycle).
		Str("cleanup_schedule", config.Cleanup.Schedule).
		Msg("engine configuration loaded")
}

// PrintShutdownBanner displays the application shutdown banner.
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("WORKQUEUE")
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().Msg("workqueue engine shutting down")
}

// PrintColorizedMessage prints a message with specified color and logs through arbor.
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it.
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("[ok] %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it.
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("[error] %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it.
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("[warn] %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it.
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("[info] %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}

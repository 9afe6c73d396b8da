package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/media-grabber/internal/app"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

var (
	//nolint:gochecknoglobals // Cobra command requires a global definition.
	cookiesCmd = &cobra.Command{
		Use:   "cookies",
		Short: "Cookie file management commands",
		Long: `Manage the cookie file passed to yt-dlp.

Use 'cookies login' to sign in via browser and export the session cookies.`,
	}

	//nolint:gochecknoglobals // Cobra command requires a global definition.
	cookiesLoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in with a browser and export the session cookies",
		Long: `Opens a browser window for you to sign in to a media site.

The login process:
1. Browser opens at the configured login URL (or --site)
2. Sign in as usual
3. Wait until one of the configured session cookies appears
4. The browser closes by itself

The cookies are written in Netscape format to the configured cookies file,
and the file path is saved to the configuration file.`,
		Args:             cobra.NoArgs,
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := bindCookiesFlagsToConfig(cmd.Flags(), appConfig); err != nil {
				logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
			}

			app.ExecuteCookiesLoginCommand(cmd.Context(), appConfig)
		},
	}
)

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	cookiesLoginCmd.Flags().String("site", "", "page to open for signing in (overrides cookies_login_url).")
	cookiesLoginCmd.Flags().StringP("output", "o", "", "path of the exported cookie file (overrides cookies_file).")

	cookiesCmd.AddCommand(cookiesLoginCmd)
	rootCmd.AddCommand(cookiesCmd)
}

func bindCookiesFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	if flag := flags.Lookup("site"); flag != nil && flag.Changed {
		cfg.CookiesLoginURL, _ = flags.GetString("site")
	}

	if flag := flags.Lookup("output"); flag != nil && flag.Changed {
		cfg.CookiesFile, _ = flags.GetString("output")
	}

	return config.ValidateConfig(cfg)
}

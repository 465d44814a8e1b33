package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"wbreports/internal/auth"
	"wbreports/internal/browser"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open the console in the saved browser profile for a manual sign-in",
		Long: "login opens a visible browser on the persistent profile and waits for\n" +
			"Enter. Sign in by hand; later runs reuse the saved session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts := a.chromeOptions()
			opts.Headless = false
			chrome, err := browser.NewChrome(ctx, opts, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := chrome.Close(); cerr != nil {
					a.logger.Warn("Browser close failed", slog.String("error", cerr.Error()))
				}
			}()

			actor := browser.NewActor(chrome, browser.Delays{PageLoad: a.cfg.Delays.PageLoad}, a.cfg.Waits.Element, a.logger)
			if err := chrome.Navigate(ctx, a.cfg.Console.URL); err != nil {
				return err
			}
			if err := actor.WaitForPageLoad(ctx); err != nil {
				return err
			}

			prompt := auth.NewPromptCodeProvider(os.Stdin, cmd.OutOrStdout())
			if _, err := prompt.Code(ctx, "Sign in in the browser window, then press Enter"); err != nil {
				return interrupted(ctx, err)
			}

			url, err := chrome.CurrentURL(ctx)
			if err == nil {
				a.logger.Info("Manual sign-in finished", slog.String("url", url))
			}
			return nil
		},
	}
}

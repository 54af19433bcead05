package cmd

import (
	"fmt"
	"runtime"

	"github.com/MapoMagpie/comic-looms/cmd/common"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "comic-looms",
		HelpName:              "comic-looms",
		Usage:                 "A gallery reader that fetches ahead of you.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "comic-looms [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Commands: []cli.Command{
			{
				Name:                   "read",
				Aliases:                []string{"r"},
				Usage:                  "walk a gallery page by page",
				ArgsUsage:              "<gallery-url>",
				Action:                 read,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ReadDescription,
				Flags:                  readFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:                   "download",
				Aliases:                []string{"d"},
				Usage:                  "save the pages of a gallery",
				ArgsUsage:              "<gallery-url>",
				Action:                 download,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            DownloadDescription,
				Flags:                  dlFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "serve",
				Aliases:            []string{"s"},
				Usage:              "expose a reader session over JSON-RPC",
				ArgsUsage:          "<gallery-url>",
				Action:             serve,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ServeDescription,
				Flags:              serveFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of comic-looms",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}

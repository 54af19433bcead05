package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
comic-looms reads image galleries page by page. Pages ahead of the
reader are fetched in small bursts so the next one is ready when
you get there, and whole chapters can be saved to disk.
`

const (
	ReadDescription = `The read command walks a gallery from a start page
in one direction, fetching ahead of the current page
the way a reader would, and reports each page as it
becomes available.

Example:
        comic-looms read --start 5 https://domain.com/gallery/42

`
	DownloadDescription = `The download command saves the pages of a gallery
into a directory. Use --pick to restrict it to some
pages, e.g. "1-10,!4,20-" (1-based, "!" excludes).

Example:
        comic-looms download -o ./vol1 https://domain.com/gallery/42

`
	ServeDescription = `The serve command loads a gallery and exposes the
reader session over JSON-RPC on a WebSocket, so a
frontend can drive it. Clients must send the secret
as a Bearer token.

Example:
        comic-looms serve --secret s3cr3t https://domain.com/gallery/42

`
)

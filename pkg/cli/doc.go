/*
Package cli provides command-line helpers shared by the tlsrelay commands.

Output Formatting:

Commands that print structured results (certificate info, journal records,
version) accept text or JSON output:

	f, err := cli.NewFormatter("json")
	if err != nil {
		return err
	}
	return f.FormatTo(os.Stdout, info)

Text output renders ordered fields as an aligned key/value table.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps a command error to the process exit status: 0 on success,
2 for configuration errors and 1 for everything else.
*/
package cli

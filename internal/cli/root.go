package cli

import (
	"context"
	"os"
)

// Execute runs the downline CLI with ctx and returns the first command
// error. Logs go to stderr at info level until the configuration or
// --verbose says otherwise.
//
// Example:
//
//	func main() {
//	    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer stop()
//	    if err := cli.Execute(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context) error {
	return New(os.Stderr, LogInfo).RootCommand().ExecuteContext(ctx)
}

// Package output renders reportrun's terminal output.
//
// Streamed log lines and progress go to stderr while the report text goes
// to stdout, so a response can be piped or redirected on its own. Colors and
// the spinner are enabled only when stderr is a terminal and NO_COLOR is
// unset.
//
// Example usage:
//
//	printer := output.NewPrinter()
//	printer.Step("Starting %s", kind.Title())
//	printer.Response("EOD", text)
package output

// Package logger provides leveled logging for casevault commands and the
// vault packages they drive.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with semantic prefixes and colors.
//
// # Verbosity Levels
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details
//
// Without flags, only critical warnings are shown. The zero Logger is
// therefore safe to embed in library option structs.
//
// # Log Methods
//
//	Logger.Infof()          // Shown with --verbose or --debug
//	Logger.Debugf()         // Shown only with --debug
//	Logger.Warnf()          // Shown with --verbose or --debug
//	Logger.WarnfAlways()    // Always shown (critical warnings)
//	Logger.Errorf()         // Shown with --verbose or --debug
//	Logger.ErrorfAndReturn() // Logs like Errorf and returns the formatted error
//
// Never pass passwords, derived keys or plaintext to any of these methods.
package logger

// Command ntdsdump is a demonstration CLI around the ntds core
// library. All flag parsing, sub-command dispatch, and configuration
// loading live in internal/cli via cobra and viper; main does nothing
// but delegate.
package main

import "github.com/sprocket-security/ntdsdump/internal/cli"

func main() { cli.Execute() }

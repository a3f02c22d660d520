package version

import "fmt"

var (
	CLIName    = "ord"
	CLIVersion = "0.1.0"
	Commit     = "unknown"
	BuildDate  = "unknown"
)

// UserAgent identifies this build to the ord server.
func UserAgent() string {
	return fmt.Sprintf("%s-wallet/%s", CLIName, CLIVersion)
}

func Long() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", CLIVersion, Commit, BuildDate)
}

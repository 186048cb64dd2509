package crepl

// Set at link time with -ldflags "-X github.com/daios-ai/crepl.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
)

package cmd

// Version is the application version, set at build time via ldflags:
// go build -ldflags "-X github.com/mxkodo/pubcast/cmd.Version=1.2.0"
var Version = "0.3.0"

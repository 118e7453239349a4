// Package cli turns the imageburst command line into an app.Config. Flag
// and argument problems come back as an *ExitError carrying exit code 2.
package cli

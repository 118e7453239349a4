// Package config defines the format-agnostic configuration model for the
// uploader along with the Loader interface that fills it from a file.
//
// A Model only carries what a file set explicitly; zero values mean "not
// configured" and leave the decision to command-line flags or built-in
// defaults. The HCL implementation lives in the hcl_adapter package.
package config

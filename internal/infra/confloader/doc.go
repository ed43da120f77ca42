// Package confloader loads layered configuration with koanf and watches
// configuration files for changes.
//
// Priority (highest to lowest):
//
//  1. Explicit maps (command-line flags)
//  2. Environment variables (ATTENDMESH_ prefix, "__" between levels)
//  3. Configuration file (YAML)
//  4. Values already present in the target struct (defaults)
package confloader

// Package config loads, normalizes, and validates lathe's TOML
// configuration. Precedence is CLI flags over config file over built-in
// defaults; the file only exists so recurring flag sets do not have to be
// retyped.
package config

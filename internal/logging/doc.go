// Package logging provides leveled logging on top of the standard log package.
//
// Levels, lowest first: DEBUG, INFO, WARN, ERROR. Fatal logs and exits.
//
// The level comes from LOG_LEVEL, or DEBUG=true as a shortcut. Engine
// decisions (attempt rejected, encoder fallback) log at DEBUG, so a normal
// run only shows conversions and failures. avifctl lowers the level to WARN
// unless --verbose is given.
package logging

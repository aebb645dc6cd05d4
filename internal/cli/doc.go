// Package cli defines the xray-cdss command tree.
//
// Every command reads its settings through one viper instance, so a value
// can come from config.yaml, an XRAY_CDSS_* environment variable or a flag.
// Flags are bound to their config keys just before the command runs, which
// lets several commands expose the same key under their own flag.
package cli

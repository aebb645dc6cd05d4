// Package config loads xray-cdss settings with viper.
//
// Values come from, in increasing priority: built-in defaults, a config.yaml
// file, XRAY_CDSS_* environment variables and command-line flags bound by
// the cli package. The defaults reproduce the layout the dataset tools have
// always used, so a bare checkout with Train_Labels.csv and src/Train_Images/
// works without any configuration.
package config

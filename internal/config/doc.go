// Package config holds the settings of a connharvest run: where state is
// stored, how the browser is launched, how the crawl is paced, and which
// selectors locate page elements. Values come from defaults, then the
// optional .connharvest YAML file, then command line flags.
package config

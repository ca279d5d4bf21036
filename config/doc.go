// Package config loads and validates ShopStream process configuration.
//
// Configuration is layered: compiled-in defaults, then an optional JSON
// file, then SHOPSTREAM_* environment variables. Later layers win, so a
// deployment can ship one config file and still inject the broker URL and
// credentials per environment:
//
//	cfg, err := config.Load(os.Getenv("SHOPSTREAM_CONFIG"))
//
// The raw file is checked against a JSON schema before unmarshalling.
// encoding/json ignores unknown fields, so without the schema a typo in a
// key would silently leave the default in place; with it the load fails and
// names the offending field. Validate then enforces semantic bounds (timeout
// ranges, subject charset, request size cap) and normalizes zero values to
// their defaults.
//
// Duration fields accept either a Go duration string ("5s", "1m30s") or a
// plain number of nanoseconds. String renders the configuration as indented
// JSON with credentials masked, suitable for logging at startup.
package config

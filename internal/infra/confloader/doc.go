// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (CHANNELCTL_<SECTION>_<KEY>)
//  3. Configuration file (YAML)
//  4. Values already present in the target struct
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix, so CHANNELCTL_NETWORK_REQUESTS_PER_SECOND sets
// network.requests_per_second.
package confloader

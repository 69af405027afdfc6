// Package output renders channelctl results as tables, JSON or YAML.
//
// Commands hand a value to a Formatter. The table formatter renders *Table
// values and anything implementing Tabler; other values fall back to JSON.
package output

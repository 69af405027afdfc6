// Package command provides the channelctl command definitions.
//
// Commands are built on urfave/cli/v2:
//
//   - root.go: application, global flags, config and logger setup
//   - runtime.go: lazily opened ledger, backend client and vault
//   - hierarchy.go: root open, tree
//   - daily.go: daily create/get/send/read/export/resume
//   - vault.go: vault list/delete
//   - stats.go: metrics snapshot
//   - config.go: effective configuration
//
// Every hierarchy command imports the root named by --root (or
// hierarchy.root) with the root password, then routes to the category
// managers.
package command

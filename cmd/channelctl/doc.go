// Package main provides the entry point for channelctl.
//
// channelctl opens and operates a hierarchy of signed channels: one root,
// three category channels (trucks, weighing_scales, biocells), one channel
// per actor and one channel per actor per day.
//
// Usage:
//
//	channelctl root open --root-password psw
//	channelctl --root <channel_id:announce_id> daily create \
//	    --root-password psw --category trucks --actor XASD --date 25/05/2021 --password day
//	channelctl --root <channel_id:announce_id> -o json tree --root-password psw
//
// Configuration is read from ~/.channelctl/config.yaml and CHANNELCTL_*
// environment variables; global flags override both.
package main

package config

import "net/url"

// redactedSecret replaces credentials in displayed URLs. It matches what
// url.URL.Redacted prints for passwords.
const redactedSecret = "xxxxx"

// Sanitize returns a copy of the config with credentials masked, for
// display.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitized.Ledger.NATSURL = maskURL(cfg.Ledger.NATSURL)
	return &sanitized
}

// maskURL hides the password of a URL's userinfo, or the whole userinfo
// when it is a bare token.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		return u.Redacted()
	}
	u.User = url.User(redactedSecret)
	return u.String()
}

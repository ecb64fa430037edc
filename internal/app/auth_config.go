package app

import (
	iauth "github.com/manuphatak/talks/internal/auth"
)

// JWTServiceConfig adapts the configuration into the token service's config.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	cfg := iauth.JWTConfig{
		Secret:              c.JWT.Secret,
		Issuer:              c.JWT.Issuer,
		SessionTokenTTL:     c.JWT.SessionTokenTTL,
		APITokenTTL:         c.JWT.APITokenTTL,
		UnsubscribeTokenTTL: c.JWT.UnsubscribeTokenTTL,
	}

	if cfg.SessionTokenTTL <= 0 {
		cfg.SessionTokenTTL = iauth.DefaultSessionTokenTTL
	}
	if cfg.APITokenTTL <= 0 {
		cfg.APITokenTTL = iauth.DefaultAPITokenTTL
	}
	if cfg.UnsubscribeTokenTTL <= 0 {
		cfg.UnsubscribeTokenTTL = iauth.DefaultUnsubscribeTokenTTL
	}

	return cfg
}

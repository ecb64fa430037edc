package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysqlDefaultOptions carries the connection options every MySQL deployment
// of this server needs: utf8mb4 so comment bodies survive emoji, parseTime
// so timestamp columns scan into time.Time.
var mysqlDefaultOptions = map[string]string{
	"charset":   "utf8mb4",
	"collation": "utf8mb4_unicode_ci",
	"parseTime": "True",
	"loc":       "Local",
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql: user and database name are required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	credentials := cfg.User
	if cfg.Password != "" {
		credentials += ":" + cfg.Password
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		credentials, host, port, cfg.Name, encodeMySQLOptions(cfg.Options)), nil
}

func encodeMySQLOptions(overrides map[string]string) string {
	merged := make(map[string]string, len(mysqlDefaultOptions)+len(overrides))
	for key, value := range mysqlDefaultOptions {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + merged[key]
	}
	return strings.Join(pairs, "&")
}

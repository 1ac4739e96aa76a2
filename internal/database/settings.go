package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/variant"
)

const (
	settingEnabled         = "enabled"
	settingMaxVariantBytes = "max_variant_bytes"
)

// GetSetting retrieves a setting value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetSetting(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_setting", start, nil)
			return
		}
		recordQuery("get_setting", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	return value, err
}

// SetSetting sets a setting key-value pair.
func (d *Database) SetSetting(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_setting", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SetDefaults sets the values used for settings that were never saved,
// normally taken from the environment.
func (d *Database) SetDefaults(s variant.Settings) {
	d.defaultsMu.Lock()
	defer d.defaultsMu.Unlock()
	d.defaults = s
}

// GetSettings implements variant.SettingsSource. Saved values win over the
// defaults.
func (d *Database) GetSettings(ctx context.Context) (variant.Settings, error) {
	d.defaultsMu.RLock()
	s := d.defaults
	d.defaultsMu.RUnlock()

	enabled, err := d.GetSetting(ctx, settingEnabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return s, err
	default:
		if b, parseErr := strconv.ParseBool(enabled); parseErr == nil {
			s.Enabled = b
		} else {
			logging.Warn("Ignoring invalid %s setting %q", settingEnabled, enabled)
		}
	}

	maxBytes, err := d.GetSetting(ctx, settingMaxVariantBytes)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return s, err
	default:
		if n, parseErr := strconv.ParseInt(maxBytes, 10, 64); parseErr == nil && n >= 0 {
			s.MaxVariantBytes = n
		} else {
			logging.Warn("Ignoring invalid %s setting %q", settingMaxVariantBytes, maxBytes)
		}
	}

	return s, nil
}

// SaveSettings persists s.
func (d *Database) SaveSettings(ctx context.Context, s variant.Settings) error {
	if err := d.SetSetting(ctx, settingEnabled, strconv.FormatBool(s.Enabled)); err != nil {
		return err
	}
	return d.SetSetting(ctx, settingMaxVariantBytes, strconv.FormatInt(s.MaxVariantBytes, 10))
}

package domain

// Setting is a persisted key/value configuration pair.
type Setting struct {
	Key   string
	Value string
}

// Known setting keys and their defaults.
const (
	SettingTrustedDeviceDays        = "trusted_device_days"
	SettingTrustedDeviceDaysDefault = "30"

	SettingCacheEnabled        = "cache_enabled"
	SettingCacheEnabledDefault = "true"
)

package offline

import (
	"context"
	"fmt"
	"log/slog"
)

// Android settings intents, tried in order. The last entry is the general
// settings surface and should always resolve.
const (
	IntentWifiSettings        = "android.settings.WIFI_SETTINGS"
	IntentWirelessSettings    = "android.settings.WIRELESS_SETTINGS"
	IntentDataRoamingSettings = "android.settings.DATA_ROAMING_SETTINGS"
	IntentSettings            = "android.settings.SETTINGS"
)

// AppSettingsURL is the fallback taking the user to this app's own settings
// page. It is also the only target available on iOS.
const AppSettingsURL = "app-settings:"

// IntentLauncher opens an OS settings surface. Launch returns an error when
// the target cannot be resolved, in which case the next candidate is tried.
type IntentLauncher interface {
	Launch(ctx context.Context, target string) error
}

// NetworkSettingsTargets returns the ordered candidates for the platform.
func NetworkSettingsTargets(platform string) []string {
	if platform == "IOS" {
		return []string{AppSettingsURL}
	}
	return []string{
		IntentWifiSettings,
		IntentWirelessSettings,
		IntentDataRoamingSettings,
		IntentSettings,
		AppSettingsURL,
	}
}

// OpenNetworkSettings walks the candidate list until one launch succeeds.
func OpenNetworkSettings(ctx context.Context, launcher IntentLauncher, platform string) error {
	var lastErr error
	for _, target := range NetworkSettingsTargets(platform) {
		if err := launcher.Launch(ctx, target); err != nil {
			slog.Debug(fmt.Sprintf("%s - launch %s: %v", logPrefix, target, err))
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%s - no settings surface resolved: %w", logPrefix, lastErr)
}

package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"depswap/internal/adapters"
	"depswap/internal/app"
	"depswap/internal/core"
)

func setConfigDefaults() {
	viper.SetDefault("workspace", adapters.DefaultWorkspaceFileName)
	viper.SetDefault("cache_validity", core.DefaultCacheValidity)
	viper.SetDefault("manifest_extensions", adapters.DefaultManifestExtensions)
	viper.SetDefault("group_name", core.DefaultGroupName)
	viper.SetDefault("scan_timeout", time.Duration(0))
	viper.SetDefault("log_level", "info")
}

func loadAppConfig() (app.Config, error) {
	overrides, err := parseOverrides(viper.GetStringSlice("overrides"))
	if err != nil {
		return app.Config{}, err
	}
	return app.Config{
		WorkspacePath:      viper.GetString("workspace"),
		SearchRoot:         viper.GetString("search_root"),
		ManifestExtensions: viper.GetStringSlice("manifest_extensions"),
		CacheValidity:      viper.GetDuration("cache_validity"),
		ScanTimeout:        viper.GetDuration("scan_timeout"),
		GroupName:          viper.GetString("group_name"),
		Overrides:          overrides,
	}, nil
}

// parseOverrides reads "name=path" entries. Dependency names contain dots,
// so overrides are a list rather than a map in depswap.yaml.
func parseOverrides(entries []string) (map[string]string, error) {
	overrides := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, path, ok := strings.Cut(entry, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid override " + strconv.Quote(entry) + ", expected name=path")
		}
		overrides[name] = path
	}
	return overrides, nil
}

// newAppService builds the service from configuration and applies any
// --override flags on top of configured overrides.
func newAppService(cfg *RootConfig) (*app.Service, error) {
	appConfig, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	service := app.NewService(appConfig)
	if cfg == nil {
		return service, nil
	}
	for name, path := range cfg.Overrides {
		if err := service.SetOverride(strings.TrimSpace(name), path); err != nil {
			_ = service.Close()
			return nil, err
		}
		log.Debug().Str("dependency", name).Str("path", path).Msg("override set from flag")
	}
	return service, nil
}

package config

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	logx "leadgen/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and
// safe structured attrs for logging (never includes secrets like API
// keys or passwords).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Storage (never log password)
	oldS, newS := oldCfg.Storage, newCfg.Storage
	var oDriver, nDriver string
	var oPathSet, nPathSet, oAddrSet, nAddrSet bool
	if oldS != nil {
		oDriver = strings.TrimSpace(oldS.Driver)
		oPathSet = strings.TrimSpace(oldS.Path) != ""
		oAddrSet = strings.TrimSpace(oldS.Addr) != ""
	}
	if newS != nil {
		nDriver = strings.TrimSpace(newS.Driver)
		nPathSet = strings.TrimSpace(newS.Path) != ""
		nAddrSet = strings.TrimSpace(newS.Addr) != ""
	}
	if oDriver != nDriver || oPathSet != nPathSet || oAddrSet != nAddrSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.Bool("storage.addr_set", nAddrSet),
		)
	}

	// Source (never log api_key)
	if strings.TrimSpace(oldCfg.Source.BaseURL) != strings.TrimSpace(newCfg.Source.BaseURL) ||
		oldCfg.Source.RequestsPerMinute != newCfg.Source.RequestsPerMinute ||
		strings.TrimSpace(oldCfg.Source.Timeout) != strings.TrimSpace(newCfg.Source.Timeout) ||
		(strings.TrimSpace(oldCfg.Source.APIKey) != "") != (strings.TrimSpace(newCfg.Source.APIKey) != "") {
		changed = append(changed, "source")
		attrs = append(attrs,
			logx.String("source.base_url", strings.TrimSpace(newCfg.Source.BaseURL)),
			logx.Int("source.requests_per_minute", newCfg.Source.RequestsPerMinute),
			logx.Bool("source.api_key_set", strings.TrimSpace(newCfg.Source.APIKey) != ""),
		)
	}

	// Engine
	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.String("engine.interval", strings.TrimSpace(newCfg.Engine.Interval)),
			logx.Int("engine.daily_limit", newCfg.Engine.DailyLimit),
			logx.Int("engine.start_hour", newCfg.Engine.StartHour),
			logx.Int("engine.end_hour", newCfg.Engine.EndHour),
			logx.Bool("engine.weekend_enabled", newCfg.Engine.WeekendEnabled),
			logx.Int("engine.max_total_results", newCfg.Engine.MaxTotalResults),
			logx.Int("engine.stop_on_errors", newCfg.Engine.StopOnErrors),
		)
	}

	// Status server (never log token)
	oldSt, newSt := oldCfg.Status, newCfg.Status
	var oEnabled, nEnabled bool
	var oAddr, nAddr string
	if oldSt != nil {
		oEnabled = oldSt.Enabled
		oAddr = strings.TrimSpace(oldSt.Addr)
	}
	if newSt != nil {
		nEnabled = newSt.Enabled
		nAddr = strings.TrimSpace(newSt.Addr)
	}
	if oEnabled != nEnabled || oAddr != nAddr {
		changed = append(changed, "status")
		attrs = append(attrs,
			logx.Bool("status.enabled", nEnabled),
			logx.String("status.addr", nAddr),
		)
	}

	// Tasks: compare by canonical JSON so key order never matters.
	if taskHash(oldCfg.Tasks) != taskHash(newCfg.Tasks) {
		changed = append(changed, "tasks")
		attrs = append(attrs, logx.Int("tasks.count", len(newCfg.Tasks)))
	}

	sort.Strings(changed)
	return changed, attrs
}

func taskHash(tasks []TaskConfig) uint64 {
	if len(tasks) == 0 {
		return 0
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

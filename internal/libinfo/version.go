/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports the version of the module that is compiled into the running binary.
package libinfo

import (
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/acronis/go-rawhttp"

// PrometheusVersionLabel is the name of the constant label carrying the module version.
const PrometheusVersionLabel = "rawhttp_version"

// develVersion is reported by the toolchain for binaries built from a working tree.
const develVersion = "(devel)"

// AddPrometheusVersionLabel returns a copy of labels with the module version label added.
func AddPrometheusVersionLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusVersionLabel] = GetVersion()
	return labelsCopy
}

var version string
var versionOnce sync.Once

// GetVersion returns the module version, "v0.0.0" if it cannot be determined.
func GetVersion() string {
	versionOnce.Do(func() {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			version = extractVersion(buildInfo, moduleName)
		}
		if version == "" {
			version = "v0.0.0"
		}
	})
	return version
}

// extractVersion looks for the module (or its major version "/vX" successor) as the main module
// of the binary first, and then among its dependencies.
func extractVersion(buildInfo *debug.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) {
		if buildInfo.Main.Version == develVersion {
			return ""
		}
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}

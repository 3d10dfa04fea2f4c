package middleware

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"momoinvoice/internal/common"

	"github.com/labstack/echo/v4"
)

// APIVersion represents API version information
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware tags responses with the API version serving them
type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	defaultVersion    string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active", Message: "Current stable API version"},
		},
		defaultVersion: "v1",
	}
}

// VersionHeader adds version and deprecation headers to every response in a group
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if ver, ok := vm.supportedVersions[version]; ok && ver.Status == "deprecated" {
				h.Set("X-API-Deprecated", "true")
				if ver.SunsetDate != nil {
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
					h.Set("Warning", `299 momoinvoice "This API version is deprecated and will be removed on `+ver.SunsetDate.Format(common.DateLayout)+`"`)
				}
			}
			return next(c)
		}
	}
}

// APIVersionResolver rejects unknown /vN prefixes and records the resolved version
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := extractVersion(c.Request().URL.Path)
			if version == "" {
				c.Set("api_version", vm.defaultVersion)
				return next(c)
			}
			if _, ok := vm.supportedVersions[version]; !ok {
				return c.JSON(http.StatusNotFound, common.CreateErrorResponse(
					"UNSUPPORTED_VERSION",
					"Unsupported API version",
					map[string]string{"supported_versions": strings.Join(vm.SupportedVersions(), ", ")},
				))
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// Deprecate marks a version deprecated with an optional sunset date.
func (vm *VersionMiddleware) Deprecate(version, message string, sunset *time.Time) {
	vm.supportedVersions[version] = APIVersion{
		Version:    version,
		Status:     "deprecated",
		SunsetDate: sunset,
		Message:    message,
	}
}

// SupportedVersions lists the versions still served, sorted.
func (vm *VersionMiddleware) SupportedVersions() []string {
	versions := make([]string, 0, len(vm.supportedVersions))
	for v := range vm.supportedVersions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// extractVersion returns "vN" for paths like /v1/invoices.
func extractVersion(path string) string {
	if !strings.HasPrefix(path, "/v") {
		return ""
	}
	segment := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	n, err := strconv.Atoi(segment[1:])
	if err != nil || n <= 0 {
		return ""
	}
	return "v" + strconv.Itoa(n)
}

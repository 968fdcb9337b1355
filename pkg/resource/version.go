package resource

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// GetVersion returns version of the server behind resource id, connecting when needed.
// Value is read from INFO server once per connection. The "version" option is not consulted.
func (m *Manager) GetVersion(ctx context.Context, id string) (string, error) {
	conn, err := m.GetResource(ctx, id)
	if err != nil {
		return "", err
	}

	e := m.resources[id]
	if e.version != "" {
		return e.version, nil
	}

	info, err := conn.Client().Info(ctx, "server").Result()
	if err != nil {
		return "", connectionError(err, "resource %q: INFO server", id)
	}

	version := infoField(info, "redis_version")
	if version == "" {
		return "", parseError("resource %q: INFO reply has no redis_version", id)
	}
	e.version = version

	return version, nil
}

// GetMajorVersion returns leading component of GetVersion
func (m *Manager) GetMajorVersion(ctx context.Context, id string) (int, error) {
	version, err := m.GetVersion(ctx, id)
	if err != nil {
		return 0, err
	}

	return MajorVersion(version)
}

// MajorVersion parses major component of dotted version like 7.0.5
func MajorVersion(version string) (int, error) {
	match := versionPattern.FindStringSubmatch(version)
	if match == nil {
		return 0, parseError("version %q", version)
	}

	major, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, parseError("version %q", version)
	}

	return major, nil
}

// infoField extracts value of field from INFO reply
func infoField(info, field string) string {
	scanner := bufio.NewScanner(strings.NewReader(info))
	prefix := field + ":"
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, prefix) {
			return strings.TrimPrefix(line, prefix)
		}
	}

	return ""
}

package config

import (
	"os"
	"sync"
)

// DockerHostAlias is the name Docker Desktop resolves to the host machine.
const DockerHostAlias = "host.docker.internal"

// containerMarkers are files created by container runtimes inside every container.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var (
	inContainerOnce   sync.Once
	inContainerResult bool
)

// IsRunningInDocker reports whether the process runs inside a container.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		inContainerResult = detectContainer(containerMarkers)
	})
	return inContainerResult
}

func detectContainer(markers []string) bool {
	for _, m := range markers {
		if _, err := os.Stat(m); err == nil {
			return true
		}
	}
	return false
}

// ResolveHostForDocker maps loopback hosts to DockerHostAlias when running in
// a container, so a source or store on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inContainer bool) string {
	if !inContainer {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return DockerHostAlias
	}
	return host
}

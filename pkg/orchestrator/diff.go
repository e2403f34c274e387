package orchestrator

import "github.com/sadguard/sadguard/pkg/platform"

const (
	sadguardDockerfilePath = ".sadguard/Dockerfile"
	sadguardWrapperPath    = ".sadguard/wrapper.sh"
)

// sadguardConfigModified reports whether both the Dockerfile and the
// wrapper script under .sadguard/ were touched by the same PR. Per spec
// this is a warning, not a block: the run still proceeds.
func sadguardConfigModified(files []platform.FileChange) bool {
	var dockerfileTouched, wrapperTouched bool
	for _, f := range files {
		switch f.Filename {
		case sadguardDockerfilePath:
			dockerfileTouched = true
		case sadguardWrapperPath:
			wrapperTouched = true
		}
	}
	return dockerfileTouched && wrapperTouched
}

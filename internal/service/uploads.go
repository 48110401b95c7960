package service

import (
	"path"
	"strings"
)

// uploadPaths maps stored file names to the public paths recorded on enrollments.
type uploadPaths struct {
	prefix string
}

func newUploadPaths(prefix string) uploadPaths {
	if prefix == "" {
		prefix = "/uploads"
	}
	return uploadPaths{prefix: "/" + strings.Trim(prefix, "/")}
}

func (u uploadPaths) public(name string) string {
	return path.Join(u.prefix, name)
}

// storedName reverses public. Paths outside the prefix are rejected.
func (u uploadPaths) storedName(publicPath string) (string, bool) {
	rest := strings.TrimPrefix(publicPath, u.prefix+"/")
	if rest == publicPath || rest == "" {
		return "", false
	}
	return rest, true
}

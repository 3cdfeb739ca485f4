// Package staging writes the per-request copies of a template bundle that the
// renderer loads, and removes them again.
package staging

import (
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

// Artifact is one kind of staged file.
type Artifact string

const (
	ArtifactController Artifact = "controller"
	ArtifactIndex      Artifact = "index"
	ArtifactHeader     Artifact = "header"
	ArtifactData       Artifact = "data"
)

var suffixes = map[Artifact]string{
	ArtifactController: ".js",
	ArtifactIndex:      ".html",
	ArtifactHeader:     "header.html",
	ArtifactData:       ".json",
}

// artifactName matches file names produced by Namespace.File.
var artifactName = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.js|\.html|header\.html|\.json)$`)

// Namespace binds the artifacts of one request: a bundle directory and a token
// used as the file name prefix. Tokens are random UUIDs, so uniqueness does
// not depend on the clock.
type Namespace struct {
	Token  string
	Dir    string
	staged []Artifact
}

// NewNamespace allocates a namespace in dir.
func NewNamespace(dir string) *Namespace {
	return &Namespace{Token: uuid.NewString(), Dir: dir}
}

// File returns the file name of an artifact, without directory.
func (n *Namespace) File(a Artifact) string {
	return n.Token + suffixes[a]
}

// Path returns the full path of an artifact.
func (n *Namespace) Path(a Artifact) string {
	return filepath.Join(n.Dir, n.File(a))
}

// Files lists the file names of the artifacts staged so far, in write order.
func (n *Namespace) Files() []string {
	out := make([]string, 0, len(n.staged))
	for _, a := range n.staged {
		out = append(out, n.File(a))
	}
	return out
}

func (n *Namespace) record(a Artifact) {
	n.staged = append(n.staged, a)
}

// IsArtifact reports whether name looks like a staged artifact.
func IsArtifact(name string) bool {
	return artifactName.MatchString(name)
}

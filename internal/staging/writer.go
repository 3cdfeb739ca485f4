package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/templates"
)

// ErrStaging marks any failure to read a bundle or write an artifact.
var ErrStaging = errors.New("staging failed")

func stageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStaging, op, err)
}

// Input is the request data staged next to the bundle copies.
type Input struct {
	// Data is written verbatim as the data artifact.
	Data []byte
	// Fields is the header template context; unused for bundles without a
	// header document.
	Fields map[string]any
}

// Writer stages bundles. It reads the shared contact-info partial from the
// catalog's common directory.
type Writer struct {
	catalog *catalog.Catalog
}

// NewWriter creates a Writer.
func NewWriter(c *catalog.Catalog) *Writer {
	return &Writer{catalog: c}
}

// Stage writes the controller, index, header (when the bundle has one) and
// data artifacts into ns.Dir, in that order. It stops at the first failure and
// leaves already written artifacts in place; ns.Files lists them for cleanup.
func (w *Writer) Stage(ctx context.Context, bundle catalog.Bundle, ns *Namespace, in Input) error {
	if bundle.Dir == "" {
		return stageErr(fmt.Sprintf("bundle for %q", bundle.Kind), fs.ErrNotExist)
	}
	info, err := os.Stat(bundle.Dir)
	if err != nil {
		return stageErr("bundle", err)
	}
	if !info.IsDir() {
		return stageErr("bundle", fmt.Errorf("%s is not a directory", bundle.Dir))
	}

	steps := []func() error{
		func() error {
			return w.rewriteFile(ns, bundle.Dir, catalog.ControllerFile, ArtifactController,
				Binding{Placeholder: catalog.DataFile, Target: ns.File(ArtifactData)})
		},
		func() error {
			return w.rewriteFile(ns, bundle.Dir, catalog.IndexFile, ArtifactIndex,
				Binding{Placeholder: catalog.ControllerFile, Target: ns.File(ArtifactController)})
		},
	}
	if bundle.Header {
		steps = append(steps, func() error { return w.writeHeader(ns, bundle.Dir, in.Fields) })
	}
	steps = append(steps, func() error { return w.write(ns, ArtifactData, in.Data) })

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return stageErr("cancelled", err)
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) rewriteFile(ns *Namespace, dir, name string, a Artifact, b Binding) error {
	src, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return stageErr("read "+name, err)
	}
	return w.write(ns, a, []byte(Rewrite(string(src), b)))
}

func (w *Writer) writeHeader(ns *Namespace, dir string, fields map[string]any) error {
	partial, err := os.ReadFile(w.catalog.CommonPath(catalog.ContactPartialFile))
	if err != nil {
		return stageErr("read "+catalog.ContactPartialFile, err)
	}
	header, err := os.ReadFile(filepath.Join(dir, catalog.HeaderFile))
	if err != nil {
		return stageErr("read "+catalog.HeaderFile, err)
	}
	out, err := templates.Header(string(header), string(partial), fields)
	if err != nil {
		return stageErr("render header", err)
	}
	return w.write(ns, ArtifactHeader, []byte(out))
}

func (w *Writer) write(ns *Namespace, a Artifact, data []byte) error {
	ns.record(a)
	if err := os.WriteFile(ns.Path(a), data, 0o644); err != nil {
		return stageErr("write "+ns.File(a), err)
	}
	return nil
}

// Package catalog maps report kinds to their template bundles on disk.
package catalog

import (
	"path/filepath"
	"sort"
)

// Bundle file names. Staged artifacts are derived from these.
const (
	ControllerFile = "reportController.js"
	IndexFile      = "index.html"
	HeaderFile     = "header.html"
	DataFile       = "data.json"

	CommonDir          = "common"
	ContactPartialFile = "header-contactInfo.temp"
	BlankFile          = "blank.html"

	QRCodesDir = "qrcodes"
)

// Default is the fixed table of report kinds served by ReportDrop.
var Default = map[string]string{
	"Alarm":           "alarm",
	"Back Flow":       "backflow",
	"Emergency Exit":  "emergencyExit",
	"Extinguisher":    "extinguishers",
	"Fire Pump":       "firepump",
	"Grease Cleaning": "greaseCleaning",
	"Hood System":     "hoodSystem",
	"Fire Hydrant":    "hydrants",
	"Monitoring":      "monitoring",
	"Sensitivity":     "sensitivity",
	"Special Hazard":  "specialHazard",
	"Sprinkler":       "sprinkler",
	"Standpipe Hose":  "standpipe",
	"Suppression":     "suppression",
	"Work Order":      "workOrder",
	"quote":           "quote",
}

// Bundle locates one report kind's templates.
type Bundle struct {
	Kind string
	// Name is the directory name relative to the catalog root; it is also the
	// path segment under /static/.
	Name string
	Dir  string
	// Header is false for bundles without a header document (QR sheets).
	Header bool
}

// Catalog resolves bundles under a root directory.
type Catalog struct {
	root  string
	kinds map[string]string
}

// New creates a Catalog rooted at dir. A nil table uses Default.
func New(root string, kinds map[string]string) *Catalog {
	if kinds == nil {
		kinds = Default
	}
	return &Catalog{root: root, kinds: kinds}
}

// Root returns the directory holding all bundles.
func (c *Catalog) Root() string {
	return c.root
}

// Resolve returns the bundle for kind. Unknown kinds are not rejected here:
// they resolve to a directory that does not exist and staging reports it.
func (c *Catalog) Resolve(kind string) Bundle {
	name, ok := c.kinds[kind]
	if !ok {
		return Bundle{Kind: kind, Header: true}
	}
	return Bundle{
		Kind:   kind,
		Name:   name,
		Dir:    filepath.Join(c.root, name),
		Header: true,
	}
}

// QRCodes returns the QR sheet bundle.
func (c *Catalog) QRCodes() Bundle {
	return Bundle{
		Kind: QRCodesDir,
		Name: QRCodesDir,
		Dir:  filepath.Join(c.root, QRCodesDir),
	}
}

// CommonPath returns the path of a shared file.
func (c *Catalog) CommonPath(file string) string {
	return filepath.Join(c.root, CommonDir, file)
}

// Kinds lists the known report kinds in sorted order.
func (c *Catalog) Kinds() []string {
	out := make([]string, 0, len(c.kinds))
	for k := range c.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dirs lists every bundle directory, including the QR sheet.
func (c *Catalog) Dirs() []string {
	seen := make(map[string]bool, len(c.kinds)+1)
	out := make([]string, 0, len(c.kinds)+1)
	for _, name := range c.kinds {
		if !seen[name] {
			seen[name] = true
			out = append(out, filepath.Join(c.root, name))
		}
	}
	if !seen[QRCodesDir] {
		out = append(out, filepath.Join(c.root, QRCodesDir))
	}
	sort.Strings(out)
	return out
}

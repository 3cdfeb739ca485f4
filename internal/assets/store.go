// Package assets merges logos, signatures and pictures kept in an external
// key-value store into a report before it is staged.
package assets

import (
	"context"
	"encoding/json"
)

// Logos are the asset path prefixes stored per client.
type Logos struct {
	LogoDir   string `json:"_l"`
	ImgAddDir string `json:"_a"`
}

// Signatures hold the signature images of a record.
type Signatures struct {
	OwnerSignature     string `json:"ownerSignature"`
	InspectorSignature string `json:"inspectorSignature"`
}

// Images are the signatures and pictures stored per record.
type Images struct {
	Signatures *Signatures       `json:"signatures"`
	Pictures   []json.RawMessage `json:"pictures"`
}

// Store looks up assets. A nil value with a nil error means nothing is stored
// under the key.
type Store interface {
	Logos(ctx context.Context, clientID string) (*Logos, error)
	Images(ctx context.Context, recordID string) (*Images, error)
}

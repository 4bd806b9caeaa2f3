package attachment

import (
	"encoding/json"
	"strings"
)

// Metadata fields the attachment subsystem reads and writes. Once frozen
// into a document they are the only source of truth for where the blob
// lives; live configuration is never consulted on the delete path.
const (
	FieldCanonicalURI = "_canonical_uri"
	FieldStorage      = "_file_storage"
	FieldS3Key        = "_s3_key"
	FieldS3Bucket     = "_s3_bucket"
	FieldS3Region     = "_s3_region"
	FieldS3Name       = "_s3_name"

	StorageLocal = "local"
	StorageS3    = "s3"

	localURIPrefix = "/files/"
)

type Kind int

const (
	// KindNone means the document carries no deletable attachment.
	KindNone Kind = iota
	// KindLocal points at a file under the local store root.
	KindLocal
	// KindRemote points at an object in an S3-compatible bucket.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "none"
	}
}

// Descriptor is the typed attachment location parsed out of a document's
// metadata. Bucket, Key and Region are the values recorded at upload time.
type Descriptor struct {
	Kind     Kind
	Path     string // KindLocal: filename relative to the store root
	Bucket   string
	Key      string
	Region   string
	Provider string
}

// Classify resolves a document's metadata into its attachment location. It
// is pure: identical metadata always yields the same descriptor, no matter
// what the server is currently configured with. Tiddler fields may sit at
// the top level or nested under "fields"; both are honored.
func Classify(meta json.RawMessage) Descriptor {
	var m map[string]any
	if err := json.Unmarshal(meta, &m); err != nil || m == nil {
		return Descriptor{}
	}
	field := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		if fields, ok := m["fields"].(map[string]any); ok {
			if v, ok := fields[key].(string); ok {
				return v
			}
		}
		return ""
	}

	switch field(FieldStorage) {
	case StorageS3:
		bucket, key := field(FieldS3Bucket), field(FieldS3Key)
		if bucket == "" || key == "" {
			// Not enough recorded to address the object; nothing deletable.
			return Descriptor{}
		}
		return Descriptor{
			Kind:     KindRemote,
			Bucket:   bucket,
			Key:      key,
			Region:   field(FieldS3Region),
			Provider: field(FieldS3Name),
		}
	case StorageLocal:
		return localDescriptor(field(FieldCanonicalURI))
	}

	// Rows written before _file_storage existed: only the /files/ URI shape
	// is self-describing enough to resolve without configuration.
	return localDescriptor(field(FieldCanonicalURI))
}

func localDescriptor(uri string) Descriptor {
	name, ok := strings.CutPrefix(uri, localURIPrefix)
	if !ok || name == "" {
		return Descriptor{}
	}
	return Descriptor{Kind: KindLocal, Path: name}
}

package record

import (
	"os"
	"time"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// Meta is the subset of filesystem metadata a manifest entry needs.
type Meta struct {
	Kind    types.Kind
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	UID     uint32
	GID     uint32
	HasIDs  bool
}

// StatFunc performs one metadata lookup without following symlinks.
type StatFunc func(path string) (Meta, error)

// OSLstat is a portable StatFunc built on os.Lstat. Door files are reported
// as unknown.
func OSLstat(path string) (Meta, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Meta{}, err
	}
	return metaFromInfo(info), nil
}

// metaFromInfo converts an os.FileInfo from os.Lstat.
func metaFromInfo(info os.FileInfo) Meta {
	m := Meta{
		Kind:    types.KindFromMode(info.Mode()),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	m.UID, m.GID, m.HasIDs = ownerIDs(info)
	return m
}

//go:build linux

package record

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// sIFDOOR is the Solaris door type bit. Linux never reports it, but listings
// copied from other systems may be replayed here.
const sIFDOOR = 0xD000

// Lstat reads raw stat(2) data so kinds the os package folds together stay
// distinguishable.
func Lstat(path string) (Meta, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Meta{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}

	return Meta{
		Kind:    classifyRaw(st.Mode),
		Size:    st.Size,
		Mode:    modeFromRaw(st.Mode),
		ModTime: time.Unix(st.Mtim.Unix()),
		UID:     st.Uid,
		GID:     st.Gid,
		HasIDs:  true,
	}, nil
}

func classifyRaw(mode uint32) types.Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return types.KindFile
	case unix.S_IFDIR:
		return types.KindDirectory
	case unix.S_IFLNK:
		return types.KindSymlink
	case unix.S_IFSOCK:
		return types.KindSocket
	case unix.S_IFIFO:
		return types.KindNamedPipe
	case sIFDOOR:
		return types.KindDoor
	default:
		return types.KindUnknown
	}
}

func modeFromRaw(mode uint32) os.FileMode {
	m := os.FileMode(mode & 0o777)

	switch mode & unix.S_IFMT {
	case unix.S_IFBLK:
		m |= os.ModeDevice
	case unix.S_IFCHR:
		m |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFDIR:
		m |= os.ModeDir
	case unix.S_IFIFO:
		m |= os.ModeNamedPipe
	case unix.S_IFLNK:
		m |= os.ModeSymlink
	case unix.S_IFSOCK:
		m |= os.ModeSocket
	case unix.S_IFREG:
	default:
		m |= os.ModeIrregular
	}

	if mode&unix.S_ISGID != 0 {
		m |= os.ModeSetgid
	}
	if mode&unix.S_ISUID != 0 {
		m |= os.ModeSetuid
	}
	if mode&unix.S_ISVTX != 0 {
		m |= os.ModeSticky
	}
	return m
}

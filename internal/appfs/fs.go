package appfs

import (
	"os"
	"path/filepath"
)

func DataDir() string {
	return filepath.Join(UserHome(), ".local/share/dcwatch")
}

func ConfigDir() string {
	return filepath.Join(UserHome(), ".config/dcwatch")
}

func StorePath() string {
	return filepath.Join(DataDir(), "store", "store.db")
}

func CachePath() string {
	return filepath.Join(DataDir(), "cache", "cache.db")
}

// SessionPath is the whatsmeow device database.
func SessionPath() string {
	return filepath.Join(DataDir(), "whatsapp.db")
}

// EnsureParent creates the directory holding path.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

func UserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// We need a home dir, this should only panic in rare circumstances
		// where we actually want to panic.
		panic(err)
	}
	return home
}

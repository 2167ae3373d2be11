package appdirs

import (
	"os"
	"path/filepath"
)

const appDirName = "iudex"

func DataDir() (string, error) {
	if override := os.Getenv("IUDEX_DATA_DIR"); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func ChatsDir(dataDir string) string {
	return filepath.Join(dataDir, "chats")
}

func ExportsDir(dataDir string) string {
	return filepath.Join(dataDir, "exports")
}

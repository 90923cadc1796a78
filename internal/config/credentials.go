package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/matflow/wkshp/internal/fsutil"
)

// DBFileEnv names the environment variable consulted when no credentials
// path is given on the command line.
const DBFileEnv = "WKSHP_DB_FILE"

// DefaultRefDir is the shared workshop directory holding recorded VASP runs.
const DefaultRefDir = "/wkshp_shared"

const maxCredentialsSize = 1 * 1024 * 1024 // 1MB

// Credentials is the content of a db.json file as written by the workflow
// tooling. Values are used verbatim. AdminUser is a pointer so that a present
// but empty admin_user still requests authentication.
type Credentials struct {
	Host          string  `json:"host"`
	Port          int     `json:"port"`
	Database      string  `json:"database"`
	Collection    string  `json:"collection"`
	AdminUser     *string `json:"admin_user,omitempty"`
	AdminPassword string  `json:"admin_password,omitempty"`
}

// HasAdmin reports whether the file carries an admin_user key.
func (c *Credentials) HasAdmin() bool {
	return c.AdminUser != nil
}

// AdminName returns the admin user, or "" when none is set.
func (c *Credentials) AdminName() string {
	if c.AdminUser == nil {
		return ""
	}
	return *c.AdminUser
}

// URI returns the mongodb:// connection string for Host and Port.
func (c *Credentials) URI() string {
	return "mongodb://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadCredentials reads a credentials file from the OS filesystem.
func LoadCredentials(path string) (*Credentials, error) {
	return LoadCredentialsFS(nil, path)
}

// LoadCredentialsFS reads a credentials file through fsys (nil means the OS
// filesystem). The file must have a .json extension and be under 1MB.
func LoadCredentialsFS(fsys fsutil.FileSystem, path string) (*Credentials, error) {
	fsys = fsutil.Or(fsys)

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("credentials file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat credentials file: %w", err)
	}
	if info.Size() > maxCredentialsSize {
		return nil, fmt.Errorf("credentials file too large: %d bytes (max %d)", info.Size(), maxCredentialsSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials JSON: %w", err)
	}
	return &creds, nil
}

// LoadEnv loads KEY=VALUE pairs from the given dotenv files into the process
// environment. Missing files are skipped; existing variables are not overridden.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveDBFile returns path, or the value of WKSHP_DB_FILE when path is empty.
func ResolveDBFile(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(DBFileEnv); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no credentials file: pass --db-file or set %s", DBFileEnv)
}

package profiles

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hectane/go-acl"
	yaml "gopkg.in/yaml.v3"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/open"
)

var ErrProfileStoreNotFound = errors.New("config file is not found")
var ErrCannotCreateConfig = errors.New("cannot create config file")
var ErrCannotUpdateConfig = errors.New("cannot update config file")
var ErrProfileInvalid = errors.New("connection profile is invalid")

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

// Profile holds connection parameters for one warehouse account.
//
// Either Connection (a named connection of the vendor CLI config) or the
// pair Account+User must be set. Every field corresponds 1:1 to a vendor
// CLI flag of the same name.
type Profile struct {
	Account        string `yaml:"account,omitempty"`
	User           string `yaml:"user,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Authenticator  string `yaml:"authenticator,omitempty"`
	PrivateKeyFile string `yaml:"privateKeyFile,omitempty"`

	Database  string `yaml:"database,omitempty"`
	Schema    string `yaml:"schema,omitempty"`
	Role      string `yaml:"role,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`

	// Connection is a named connection in the vendor CLI's own config
	// file. When set, account/user/password may stay empty here.
	Connection string `yaml:"connection,omitempty"`

	// Temporary makes the vendor CLI treat the parameters as a
	// temporary connection instead of a stored one.
	Temporary bool `yaml:"temporaryConnection,omitempty"`
}

var knownAuthenticators = map[string]bool{
	"":                true,
	"snowflake":       true,
	"snowflake_jwt":   true,
	"externalbrowser": true,
}

// Verify the profile.
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	if p.Connection == "" {
		if p.Account == "" {
			return fmt.Errorf("%w: account is required (or set connection)", ErrProfileInvalid)
		}
		if p.User == "" {
			return fmt.Errorf("%w: user is required (or set connection)", ErrProfileInvalid)
		}
	}

	if !knownAuthenticators[strings.ToLower(p.Authenticator)] {
		return fmt.Errorf("%w: unknown authenticator: %s", ErrProfileInvalid, p.Authenticator)
	}

	if strings.EqualFold(p.Authenticator, "snowflake_jwt") {
		if p.PrivateKeyFile == "" {
			return fmt.Errorf("%w: snowflake_jwt needs privateKeyFile", ErrProfileInvalid)
		}
		if s, err := os.Stat(p.PrivateKeyFile); err != nil || !s.Mode().IsRegular() {
			return fmt.Errorf(
				"%w: privateKeyFile is not a readable file: %s",
				ErrProfileInvalid, p.PrivateKeyFile,
			)
		}
	}

	return nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshall(buf)
}

// Unmarshall profile store from yaml in byte array.
func Unmarshall(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	err := yaml.Unmarshal(buf, &ret)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Save profile store to file.
//
// Profiles can hold credentials, so the file is forced to permission 0600
// and written through a backup copy.
func (ps *ProfileStore) Save(path string) error {
	saving := false

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := open.NewSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !saving {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		// In case of the existing file with loose permissions,
		// enforce permission to 0600.
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			return err
		}
	} else {
		if os.IsPermission(err) {
			return fmt.Errorf(
				"%w, because no permission to write file at %s",
				ErrCannotUpdateConfig, path,
			)
		} else if os.IsNotExist(err) {
			f_, err_ := open.NewSafeFile(path)
			if err_ != nil {
				return fmt.Errorf(
					"%w: cannot create a file at %s",
					ErrCannotCreateConfig, path,
				)
			}
			f = f_
		} else {
			return err
		}
	}
	defer f.Close()

	if err := bk.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	saving = true
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	_, err = f.Write(buf)

	if err == nil {
		saving = false
	}
	return err
}

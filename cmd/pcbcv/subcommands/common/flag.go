package common

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// CommonFlags are accepted by every subcommand. The connection fields
// override the corresponding profile fields for a single invocation.
type CommonFlags struct {
	Profile      string `flag:"profile" help:"connection profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to the profile store file"`
	Env          string `flag:"env" help:"path to pcbcvenv file"`

	Account        string `flag:"account" help:"account identifier. Overrides the profile."`
	User           string `flag:"user" help:"login name. Overrides the profile."`
	Password       string `flag:"password" help:"password. Overrides the profile."`
	Authenticator  string `flag:"authenticator" help:"snowflake|snowflake_jwt|externalbrowser. Overrides the profile."`
	PrivateKeyFile string `flag:"private-key-file" help:"private key file for snowflake_jwt. Overrides the profile."`
	Database       string `flag:"database" help:"database name. Overrides the profile."`
	Schema         string `flag:"schema" help:"schema name. Overrides the profile."`
	Role           string `flag:"role" help:"role name. Overrides the profile."`
	Warehouse      string `flag:"warehouse" help:"warehouse name. Overrides the profile."`
	Connection     string `flag:"connection" alias:"c" help:"named connection of the vendor CLI config. Overrides the profile."`
	Temporary      bool   `flag:"temporary-connection" alias:"x" help:"use the parameters as a temporary connection"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default common flag values, starting at directory from:
// the profile name comes from the nearest ".pcbcvprofile", the env file is
// the nearest "pcbcvenv", and a ".env" next to them is loaded into the
// process environment (existing variables win).
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{
		home: "",
	}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		_home, err := os.UserHomeDir()
		if err != nil {
			_home = ""
		}
		home = _home
	}

	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}

	if dotenv := path.Join(from, ".env"); fileExists(dotenv) {
		// overlay only; variables already in the environment win.
		_ = godotenv.Load(dotenv)
	}

	profile := "default"

	profileFound := false
	envFound := false
	env := path.Join(from, "pcbcvenv")
	for searchpath := from; ; {
		if !profileFound {
			candidate := path.Join(searchpath, ".pcbcvprofile")
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				_profile, err := os.ReadFile(candidate)
				if err != nil {
					return CommonFlags{}, err
				}
				profileFound = true
				if p := strings.Split(string(_profile), "\n"); 0 < len(p) {
					profile = strings.TrimSpace(p[0])
				}
			}
		}
		if !envFound {
			candidate := path.Join(searchpath, "pcbcvenv")
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				envFound = true
				env = candidate
			}
		}
		if profileFound && envFound {
			break
		}

		next := path.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return CommonFlags{
		Profile:      profile,
		ProfileStore: path.Join(home, ".pcbcv", "profile"),
		Env:          env,
	}, nil
}

func fileExists(p string) bool {
	s, err := os.Stat(p)
	return err == nil && s.Mode().IsRegular()
}

package ssh

import (
	"fmt"
	"os"
	"path/filepath"

	gossh "golang.org/x/crypto/ssh"
)

// defaultKeyPaths returns the standard SSH private key file paths to try,
// in order of preference: ed25519 > ecdsa > rsa.
// Returns nil if the user's home directory cannot be determined.
func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	sshDir := filepath.Join(home, ".ssh")
	return []string{
		filepath.Join(sshDir, "id_ed25519"),
		filepath.Join(sshDir, "id_ecdsa"),
		filepath.Join(sshDir, "id_rsa"),
	}
}

// loadPrivateKey attempts to load and parse a private key from the given path.
// Returns nil if the file doesn't exist, can't be read, or can't be parsed.
func loadPrivateKey(path string) gossh.Signer {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := gossh.ParsePrivateKey(key)
	if err != nil {
		return nil
	}
	return signer
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// buildAuthMethods constructs the SSH authentication method chain.
//
// Priority order:
//  1. Explicit identity file from the connection params. A configured file
//     that is missing or unparseable is silently skipped, matching the
//     behavior of connecting without it.
//  2. Default key paths from ~/.ssh/ (silent failures).
//
// The same key path is never loaded twice.
func buildAuthMethods(params ConnectionParams) ([]gossh.AuthMethod, error) {
	return buildAuthMethodsWithDefaults(params, defaultKeyPaths())
}

func buildAuthMethodsWithDefaults(params ConnectionParams, defaults []string) ([]gossh.AuthMethod, error) {
	var methods []gossh.AuthMethod
	tried := make(map[string]struct{})

	if params.IdentityFile != "" {
		normPath := normalizePath(params.IdentityFile)
		tried[normPath] = struct{}{}
		if signer := loadPrivateKey(params.IdentityFile); signer != nil {
			methods = append(methods, gossh.PublicKeys(signer))
		}
	}

	for _, path := range defaults {
		normPath := normalizePath(path)
		if _, ok := tried[normPath]; ok {
			continue
		}
		tried[normPath] = struct{}{}

		if signer := loadPrivateKey(path); signer != nil {
			methods = append(methods, gossh.PublicKeys(signer))
		}
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable SSH keys found (identity_file=%q)", params.IdentityFile)
	}
	return methods, nil
}

package identity

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// SigningKeyEnvVar holds the HS256 signing key in plain text.
	SigningKeyEnvVar = "CREATE_JWT_SECRET"

	credentialDir  = ".create-post"
	credentialFile = "signing-key.gpg"
)

// ErrNoSigningKey is returned when no signing key source is available.
var ErrNoSigningKey = errors.New("signing key not found")

// LocalSigningKey returns the token signing key for the CLI.
// Priority order:
//  1. CREATE_JWT_SECRET environment variable
//  2. GPG-encrypted file at ~/.create-post/signing-key.gpg
func LocalSigningKey() ([]byte, error) {
	if key := os.Getenv(SigningKeyEnvVar); key != "" {
		log.Debug().Msg("Using signing key from environment variable")
		return []byte(key), nil
	}

	key, err := signingKeyFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using signing key from GPG encrypted file")
		return []byte(key), nil
	}

	log.Debug().Err(err).Msg("No local signing key")
	return nil, fmt.Errorf("%w: set %s or create ~/%s/%s", ErrNoSigningKey, SigningKeyEnvVar, credentialDir, credentialFile)
}

func signingKeyFromGPG() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	credPath := filepath.Join(home, credentialDir, credentialFile)
	if _, err := os.Stat(credPath); err != nil {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")
	output, err := exec.Command("gpg", "--decrypt", "--quiet", credPath).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
